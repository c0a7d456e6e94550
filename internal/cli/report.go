package cli

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/launchbynttdata/metagen/internal/domain/descriptor"
	"github.com/launchbynttdata/metagen/internal/services/generate"
)

func descriptorRows(d descriptor.Descriptor) []table.Row {
	return []table.Row{
		{"VERSION_STR", d.VersionString()},
		{"VERSION_FULL_STR", d.FullVersionString()},
		{"BUILD_DATE", d.BuildDateString()},
		{"VERSION_MAJOR", d.Version.Major},
		{"VERSION_MINOR", d.Version.Minor},
		{"VERSION_PATCH", d.Version.Patch},
		{"VERSION_BUILD", d.Build},
		{"BUILD_SNAPSHOT", strconv.FormatBool(d.Snapshot)},
		{"BUILD_COMMIT", d.Commit},
	}
}

func renderDescriptorTable(out io.Writer, d descriptor.Descriptor) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Constant", "Value"})
	t.AppendRows(descriptorRows(d))
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func renderDescribeTable(out io.Writer, result generate.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Constant", "Value"})
	t.AppendRows(descriptorRows(result.Descriptor))
	t.AppendSeparator()

	tag := result.Raw.Tag
	if result.Fallback {
		tag = "(none, default version applied)"
	}
	t.AppendRow(table.Row{"tag", tag})
	t.AppendRow(table.Row{"commits since tag", result.Raw.CommitsSinceTag})
	t.AppendRow(table.Row{"dirty", strconv.FormatBool(result.Raw.Dirty)})

	t.SetStyle(table.StyleRounded)
	t.Render()
}
