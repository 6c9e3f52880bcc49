// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/dgarroDC/ow-mod-man/cmd/owmods"

func main() {
	cmd.Execute()
}
