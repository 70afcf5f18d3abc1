package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/fatechart/fate"
	"github.com/liamcoop/fatechart/internal/reference"
)

var renderers = map[string]func(io.Writer, *fate.Report) error{
	"json": renderJSON,
	"yaml": renderYAML,
	"text": renderText,
}

func renderJSON(w io.Writer, r *fate.Report) error { return writeJSON(w, r) }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// renderYAML goes through the JSON encoding so field names and order match the
// API, then clears the JSON quoting and flow styles.
func renderYAML(w io.Writer, r *fate.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	plain(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

func plain(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		plain(c)
	}
}

func renderText(w io.Writer, r *fate.Report) error {
	b := r.Birth
	c := r.Chart
	fmt.Fprintf(w, "%s  %04d-%02d-%02d  %s\n\n", b.Name, b.Year, b.Month, b.Day, b.Hour)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\t年\t月\t日\t時")
	row := func(label string, f func(fate.Pillar) string) {
		cells := []string{label}
		for _, p := range c.Pillars() {
			cells = append(cells, f(p))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	row("柱", fate.Pillar.String)
	row("十神", func(p fate.Pillar) string { return string(p.Role) })
	row("五行", func(p fate.Pillar) string { return string(p.Element) + string(p.BranchElement) })
	row("藏干", func(p fate.Pillar) string { return strings.Join(p.HiddenStems, "") })
	row("長生", func(p fate.Pillar) string { return p.Stage })
	row("神煞", func(p fate.Pillar) string { return orDash(strings.Join(p.Markers, "、")) })
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n日主 %s（%s）  %s %d  格局 %s\n", c.DayMaster, c.DayMasterElement, r.Strength.Class.Label(), r.Strength.Score, r.Archetype.Name)
	balance := make([]string, 0, len(reference.Elements))
	for _, e := range reference.Elements {
		balance = append(balance, fmt.Sprintf("%s%d", e, c.Balance[e]))
	}
	fmt.Fprintf(w, "五行 %s\n", strings.Join(balance, " "))
	if len(r.Tags) > 0 {
		fmt.Fprintf(w, "標籤 %s\n", strings.Join(r.Tags, "、"))
	}

	for _, s := range []struct{ title, body string }{
		{"性格", r.Personality},
		{"整體運勢", r.OverallFortune},
		{"財運", r.Wealth},
		{"事業", r.Career},
		{"感情", r.Love},
		{"建議", r.Guidance},
		{"當前運勢", r.CurrentCycle},
	} {
		fmt.Fprintf(w, "\n【%s】\n%s\n", s.title, s.body)
	}

	fmt.Fprintln(w, "\n【宮位】")
	for _, p := range r.Palaces {
		fmt.Fprintf(w, "%s %s %s  %s\n", p.Icon, p.Palace, p.StarLabel(), p.Narrative)
	}

	fmt.Fprintf(w, "\n「%s」 ── %s《%s》\n", r.Quote.Text, r.Quote.Author, r.Quote.Source)
	return nil
}

func renderExplanation(w io.Writer, m fate.BirthMoment, x *fate.Explanation) error {
	fmt.Fprintf(w, "%s  %04d-%02d-%02d  %s\n", m.Name, m.Year, m.Month, m.Day, m.Hour)
	fmt.Fprintf(w, "格局 %s（規則 v%d）\n\n", x.Archetype.Name, x.RulesVersion)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "優先\t規則\t格局\t結果")
	for _, r := range x.Rules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Priority, r.ID, r.Name, outcome(r))
	}
	return tw.Flush()
}

func renderRule(w io.Writer, r *fate.RuleExplanation) error {
	fmt.Fprintf(w, "%s %s（優先 %d）  %s\n", r.ID, r.Name, r.Priority, outcome(*r))
	fmt.Fprintln(w, r.Expression)

	// Each step shows the value of the subexpression starting at its offset.
	src := []rune(r.Expression)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, step := range r.Trace {
		fmt.Fprintf(tw, "  %d\t%s\t= %s\n", step.Offset, snippet(src, step.Offset), step.Value)
	}
	return tw.Flush()
}

func outcome(r fate.RuleExplanation) string {
	switch {
	case r.Error != "":
		return "錯誤: " + r.Error
	case r.Selected:
		return "符合（選用）"
	case r.Matched:
		return "符合"
	default:
		return "-"
	}
}

func snippet(src []rune, offset int) string {
	const width = 16
	if offset < 0 || offset >= len(src) {
		return ""
	}
	rest := src[offset:]
	if len(rest) > width {
		return string(rest[:width]) + "…"
	}
	return string(rest)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
