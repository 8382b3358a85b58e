package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"branchward/internal/reconcile"
)

var (
	okColor      = color.New(color.FgGreen)
	alreadyColor = color.New(color.FgYellow)
	failColor    = color.New(color.FgRed)
	headerColor  = color.New(color.FgCyan, color.Bold)
)

// Console renders human-readable run progress and the final summary.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

func (c *Console) ProjectHeader(path string) {
	fmt.Fprintln(c.w)
	headerColor.Fprintf(c.w, "Processing project: %s\n", path)
}

// ResultLine prints one audit line for a finished reconciliation call.
func (c *Console) ResultLine(resource, op string, oc reconcile.Outcome) {
	var painter *color.Color
	switch oc.Status {
	case reconcile.StatusCreated, reconcile.StatusProtected:
		painter = okColor
	case reconcile.StatusAlreadyExists, reconcile.StatusAlreadyProtected:
		painter = alreadyColor
	default:
		painter = failColor
	}
	fmt.Fprintf(c.w, "  -> %s %s: ", op, resource)
	painter.Fprintln(c.w, statusText(oc))
}

func statusText(oc reconcile.Outcome) string {
	switch oc.Status {
	case reconcile.StatusCreated:
		return "created"
	case reconcile.StatusProtected:
		return "protected"
	case reconcile.StatusAlreadyExists:
		return "already exists"
	case reconcile.StatusAlreadyProtected:
		return "already protected"
	default:
		return "failed: " + oc.Message
	}
}

// SummaryRow is one project's tally for the final table.
type SummaryRow struct {
	Project string
	Created int
	Already int
	Failed  int
}

func (c *Console) Summary(rows []SummaryRow) {
	if len(rows) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Project", "Created", "Already in place", "Failed"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Project, r.Created, r.Already, r.Failed})
	}
	fmt.Fprintln(c.w)
	t.Render()
}
