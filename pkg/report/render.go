package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/crateprune/crateprune/pkg/depindex"
)

// NoFindingsMessage is printed on a clean run.
const NoFindingsMessage = "All deps seem to have been used."

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("167"))
	stylePkg    = lipgloss.NewStyle().Bold(true)
)

// Renderer writes reports and warnings as text trees.
type Renderer struct {
	Styled bool
}

func (r Renderer) header(s string) string {
	if r.Styled {
		return styleHeader.Render(s)
	}
	return s
}

func (r Renderer) pkg(s string) string {
	if r.Styled {
		return stylePkg.Render(s)
	}
	return s
}

// Render writes the report to w: a tree per package with one branch per
// non-empty category, or the all-clear line when nothing was found.
func (r Renderer) Render(w io.Writer, rep *Report) error {
	if !rep.HasFindings() {
		_, err := fmt.Fprintln(w, NoFindingsMessage)
		return err
	}

	var b strings.Builder
	b.WriteString(r.header("unused dependencies:") + "\n")
	for _, e := range rep.Entries {
		if len(e.NormalDev) == 0 && len(e.Build) == 0 {
			continue
		}
		b.WriteString(r.pkg("`"+e.Label+"`") + "\n")
		writeCategoryTrees(&b, e.NormalDev, e.Build, func(name string) string {
			return fmt.Sprintf("%q", name)
		})
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderAmbiguities writes the non-fatal collision warning body for one
// package: every library name shared by several manifest dependencies,
// grouped per category in the same tree shape as the report.
func (r Renderer) RenderAmbiguities(w io.Writer, label string, ambs []depindex.Ambiguity) error {
	if len(ambs) == 0 {
		return nil
	}

	byName := make(map[depindex.Category][]string)
	byLib := make(map[string]string) // manifest name -> colliding lib name
	for _, a := range ambs {
		for _, name := range a.Names {
			byName[a.Category] = append(byName[a.Category], name)
			byLib[name] = a.LibName
		}
	}

	var b strings.Builder
	b.WriteString("Currently crateprune cannot distinguish multiple crates with the same lib name. This may cause false negatives\n")
	b.WriteString(r.pkg("`"+label+"`") + "\n")
	writeCategoryTrees(&b, byName[depindex.NormalDev], byName[depindex.Build], func(name string) string {
		return fmt.Sprintf("%q → %q", name, byLib[name])
	})
	_, err := io.WriteString(w, b.String())
	return err
}

// writeCategoryTrees draws the two category branches with box-drawing
// joints. The upper branch keeps a running edge while a lower branch
// follows.
func writeCategoryTrees(b *strings.Builder, normalDev, build []string, leaf func(string) string) {
	edge, joint := " ", "└"
	if len(build) > 0 {
		edge, joint = "│", "├"
	}

	groups := []struct {
		names []string
		edge  string
		joint string
		label string
	}{
		{normalDev, edge, joint, depindex.NormalDev.String()},
		{build, " ", "└", depindex.Build.String()},
	}
	for _, g := range groups {
		if len(g.names) == 0 {
			continue
		}
		fmt.Fprintf(b, "%s─── %s\n", g.joint, g.label)
		for i, name := range g.names {
			leafJoint := "├"
			if i == len(g.names)-1 {
				leafJoint = "└"
			}
			fmt.Fprintf(b, "%s    %s─── %s\n", g.edge, leafJoint, leaf(name))
		}
	}
}
