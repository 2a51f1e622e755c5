// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	EntryAmbiguousId Id = iota + 1
	EntryInvalidId
	DescriptorMismatchId
	MissingFieldsId
	InputsDocumentInvalidId
	ProvisionFailedId
	EngineNotFoundId
	EngineFailedId
	ConfigLoadFailedId
	CacheUnavailableId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // lookup key
	mdMsg    MarkdownMsg // rendered with glamour
	docLinks []HttpLink
	extLinks []HttpLink
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

// Render renders the issue's Markdown with the given glamour style.
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	links := append(i.DocLinks(), i.extLinks...)
	if len(links) > 0 {
		md += "\n\n## See also\n"
		for _, link := range links {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	entryAmbiguousIssue = &Issue{
		id: EntryAmbiguousId,
		mdMsg: `
# Entry file is ambiguous!

The file extension and the file content point to different workflow
languages, or the content looks like both and the file has no extension.

## Things you can try:
- Tell dockstore which language the entry file is written in:
~~~
$ dockstore launch --local-entry my.workflow --json inputs.json --descriptor cwl
~~~
- Rename the file so the extension matches the content (` + "`.cwl`" + `, ` + "`.wdl`" + `)`,
		extLinks: []HttpLink{"https://www.commonwl.org/", "https://openwdl.org/"},
	}

	entryInvalidIssue = &Issue{
		id: EntryInvalidId,
		mdMsg: `
# Entry file is invalid!

Neither the file name nor the content identify a CWL or WDL descriptor.

## Recognized extensions:
- **CWL**: ` + "`.cwl`, `.yaml`, `.yml`" + `
- **WDL**: ` + "`.wdl`" + `

## Things you can try:
- Check that the path points to the workflow descriptor, not to an inputs file
- Add a ` + "`cwlVersion`" + ` line (CWL) or a ` + "`workflow`" + ` block (WDL)`,
	}

	descriptorMismatchIssue = &Issue{
		id: DescriptorMismatchId,
		mdMsg: `
# Descriptor flag contradicts the file!

The ` + "`--descriptor`" + ` value names one language but the file content is
written in the other. Running it would hand the file to the wrong engine.

## Things you can try:
- Drop the ` + "`--descriptor`" + ` flag and let dockstore detect the language
- Pass the language the file is actually written in`,
	}

	missingFieldsIssue = &Issue{
		id: MissingFieldsId,
		mdMsg: `
# Required sections are missing!

The descriptor is missing sections every workflow of its language needs.

## Required sections:
- **CWL**: ` + "`inputs`" + `
- **WDL**: ` + "`task`, `command`, `workflow`" + ` and at least one ` + "`call`" + ` inside the workflow

## Example WDL:
~~~
task hello {
  command { echo hello }
}

workflow test {
  call hello
}
~~~`,
	}

	inputsDocumentInvalidIssue = &Issue{
		id: InputsDocumentInvalidId,
		mdMsg: `
# Inputs document could not be read!

The parameter file passed with ` + "`--json`" + ` or ` + "`--yaml`" + ` is missing or is
not a JSON/YAML object.

## Things you can try:
- Generate a template from a CWL descriptor:
~~~
$ dockstore convert cwl2json --cwl Dockstore.cwl > inputs.json
~~~
- File inputs are objects: ` + "`{\"class\": \"File\", \"path\": \"reads.bam\"}`",
	}

	provisionFailedIssue = &Issue{
		id: ProvisionFailedId,
		mdMsg: `
# File provisioning failed!

One or more input files could not be staged, or output files could not be
delivered to their destination.

## Things you can try:
- Check that local input paths exist and are readable
- Check network access to remote URLs (signed URLs expire)
- Re-run with ` + "`--verbose`" + ` to see every transfer attempt
- Disable the cache with ` + "`--cache=false`" + ` if a cached copy looks stale`,
	}

	engineNotFoundIssue = &Issue{
		id: EngineNotFoundId,
		mdMsg: `
# Workflow engine not found!

The engine bound to this descriptor language could not be started.

## Engines:
- **CWL**: ` + "`cwltool`" + ` must be on your PATH
- **WDL**: Cromwell, run through ` + "`java -jar $CROMWELL_JAR`" + `

## Things you can try:
~~~
$ pip install cwltool
$ export CROMWELL_JAR=/opt/cromwell/cromwell.jar
~~~
- Or point ` + "`engines.cwl.command`" + ` / ` + "`engines.wdl.command`" + ` in your config at another launcher`,
		extLinks: []HttpLink{"https://github.com/common-workflow-language/cwltool", "https://github.com/broadinstitute/cromwell"},
	}

	engineFailedIssue = &Issue{
		id: EngineFailedId,
		mdMsg: `
# Workflow run failed!

The engine exited with an error or did not report success. Outputs were
not provisioned.

## Things you can try:
- Read the engine output above for the failing step
- Check the staged inputs in the working directory (kept with ` + "`--workdir`" + `)`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Configuration file locations:
- Linux: ~/.config/dockstore/config.cue
- macOS: ~/Library/Application Support/dockstore/config.cue
- Windows: %APPDATA%\dockstore\config.cue

## Things you can try:
- Write a default configuration:
~~~
$ dockstore config init
~~~
- Print the configuration dockstore actually uses:
~~~
$ dockstore config show
~~~

## Example configuration:
~~~cue
cache: {
  enabled: true
  max_size_mb: 2048
}
provision: {
  concurrency: 4
  retries: 3
}
~~~`,
	}

	cacheUnavailableIssue = &Issue{
		id: CacheUnavailableId,
		mdMsg: `
# Content cache is unavailable!

The cache directory could not be opened or its index is unreadable.

## Things you can try:
- Check permissions on the cache directory (` + "`dockstore config show`" + ` prints it)
- Remove a corrupt index; cached files are re-indexed on the next fetch:
~~~
$ rm ~/.dockstore/cache/index.json
~~~`,
	}

	issues = map[Id]*Issue{
		entryAmbiguousIssue.Id():        entryAmbiguousIssue,
		entryInvalidIssue.Id():          entryInvalidIssue,
		descriptorMismatchIssue.Id():    descriptorMismatchIssue,
		missingFieldsIssue.Id():         missingFieldsIssue,
		inputsDocumentInvalidIssue.Id(): inputsDocumentInvalidIssue,
		provisionFailedIssue.Id():       provisionFailedIssue,
		engineNotFoundIssue.Id():        engineNotFoundIssue,
		engineFailedIssue.Id():          engineFailedIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		cacheUnavailableIssue.Id():      cacheUnavailableIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
