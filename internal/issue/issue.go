// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"strings"

	"github.com/dgarroDC/ow-mod-man/pkg/owmod"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	RegistryUnreachableId Id = iota + 1
	RegistryParseFailedId
	ModsDirMissingId
	InvalidManifestId
	DependencyMissingId
	ConflictId
	ModBusyId
	RequiredModId
	ModNotFoundId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal markdown using the glamour style at stylePath
// ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	registryUnreachableIssue = &Issue{
		id: RegistryUnreachableId,
		mdMsg: `
# Could not reach the mod registry!

The mod list could not be downloaded. Installed mods are unaffected and the
last cached registry is still used for searches.

## Things you can try:
- Check your network connection and retry
- Check the configured registry URL:
~~~
$ owmods config show
~~~
- Override the URL for a single run:
~~~
$ OWMODS_DATABASE_URL=https://example.com/database.json owmods search
~~~`,
		docLinks: []HttpLink{"https://ow-mods.github.io/ow-mod-db/"},
	}

	registryParseFailedIssue = &Issue{
		id: RegistryParseFailedId,
		mdMsg: `
# The mod registry could not be read!

The registry document was downloaded but is not valid. The previous registry
snapshot has been kept.

## Things you can try:
- Retry later; the registry may be mid-deploy
- Make sure database_url points to a database.json document`,
	}

	modsDirMissingIssue = &Issue{
		id: ModsDirMissingId,
		mdMsg: `
# Mods directory not found!

The manager could not find the directory installed mods live in.

## Things you can try:
- Install OWML first, or point the manager at an existing installation:
~~~cue
owml_path: "/path/to/OWML"
~~~
- Set an explicit mods directory:
~~~cue
mods_dir: "/path/to/OWML/Mods"
~~~`,
	}

	invalidManifestIssue = &Issue{
		id: InvalidManifestId,
		mdMsg: `
# A mod has an invalid manifest!

A directory in the mods folder has a manifest.json that is missing, malformed,
or missing required fields (uniqueName, name, author, version).

## Things you can try:
- Remove the broken entry:
~~~
$ owmods uninstall --broken <path>
~~~
- Reinstall the mod from the registry`,
	}

	dependencyMissingIssue = &Issue{
		id: DependencyMissingId,
		mdMsg: `
# Dependencies not satisfied!

A mod requires another mod that is not installed, not enabled, or not
available in the registry.

## Things you can try:
- Install and enable the missing dependencies:
~~~
$ owmods fix-deps <mod>
~~~
- Check the mod page for dependencies hosted outside the registry`,
	}

	conflictIssue = &Issue{
		id: ConflictId,
		mdMsg: `
# Conflicting mods!

Two mods declare that they cannot be enabled together.

## Things you can try:
- Disable one of the two mods:
~~~
$ owmods disable <mod>
~~~
- Check the mod descriptions for compatible alternatives`,
	}

	modBusyIssue = &Issue{
		id: ModBusyId,
		mdMsg: `
# Mod is busy!

Another install, update or uninstall is already running for this mod.

## Things you can try:
- Wait for the running operation to finish and retry`,
	}

	requiredModIssue = &Issue{
		id: RequiredModId,
		mdMsg: `
# This mod is required!

The registry marks this mod as required infrastructure. It cannot be disabled
or uninstalled through the manager.`,
	}

	modNotFoundIssue = &Issue{
		id: ModNotFoundId,
		mdMsg: `
# Mod not found!

No installed mod and no registry entry has that unique name.

## Things you can try:
- Search by name or author:
~~~
$ owmods search <query>
~~~
- Unique names are case sensitive, e.g. ~xen.NewHorizons~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file or an OWMODS_* environment variable is invalid.

## Things you can try:
- Show the effective configuration:
~~~
$ owmods config show
~~~
- Fix or delete the config file, defaults are used when it is absent
- Check OWMODS_* environment variables for typos`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	issues = map[Id]*Issue{
		registryUnreachableIssue.Id(): registryUnreachableIssue,
		registryParseFailedIssue.Id(): registryParseFailedIssue,
		modsDirMissingIssue.Id():      modsDirMissingIssue,
		invalidManifestIssue.Id():     invalidManifestIssue,
		dependencyMissingIssue.Id():   dependencyMissingIssue,
		conflictIssue.Id():            conflictIssue,
		modBusyIssue.Id():             modBusyIssue,
		requiredModIssue.Id():         requiredModIssue,
		modNotFoundIssue.Id():         modNotFoundIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
	}

	kindIssues = map[owmod.ErrorKind]Id{
		owmod.NetworkError:       RegistryUnreachableId,
		owmod.ParseError:         RegistryParseFailedId,
		owmod.InvalidManifest:    InvalidManifestId,
		owmod.MissingDependency:  DependencyMissingId,
		owmod.DisabledDependency: DependencyMissingId,
		owmod.ConflictDetected:   ConflictId,
		owmod.ConflictActive:     ConflictId,
		owmod.BusyError:          ModBusyId,
		owmod.RequiredMod:        RequiredModId,
		owmod.NotFound:           ModNotFoundId,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForError returns the catalog entry explaining err, or nil when none applies.
func ForError(err error) *Issue {
	if err == nil {
		return nil
	}
	id, ok := kindIssues[owmod.KindOf(err)]
	if !ok {
		return nil
	}
	return issues[id]
}
