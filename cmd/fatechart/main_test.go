package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/fatechart/fate"
	"github.com/liamcoop/fatechart/internal/oracle"
	"github.com/liamcoop/fatechart/rules"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var goldenArgs = []string{"chart", "--name", "測試", "--date", "1990-01-01", "--hour", "子", "--seed", "7"}

func TestChartJSON(t *testing.T) {
	out, err := run(t, append(goldenArgs, "--format", "json")...)
	if err != nil {
		t.Fatalf("chart error: %v", err)
	}
	var r fate.Report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a report: %v\n%s", err, out)
	}
	if got := r.Chart.Day.String(); got != "丙辰" {
		t.Errorf("day pillar = %s, want 丙辰", got)
	}
	if r.Archetype.Name != "食神生財" {
		t.Errorf("archetype = %s, want 食神生財", r.Archetype.Name)
	}
}

func TestChartYAMLMatchesJSON(t *testing.T) {
	jsonOut, err := run(t, append(goldenArgs, "--format", "json")...)
	if err != nil {
		t.Fatalf("json error: %v", err)
	}
	yamlOut, err := run(t, append(goldenArgs, "--format", "yaml")...)
	if err != nil {
		t.Fatalf("yaml error: %v", err)
	}

	var fromJSON, fromYAML map[string]any
	if err := json.Unmarshal([]byte(jsonOut), &fromJSON); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if err := yaml.Unmarshal([]byte(yamlOut), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, yamlOut)
	}

	chartJSON := fromJSON["chart"].(map[string]any)
	chartYAML := fromYAML["chart"].(map[string]any)
	if chartYAML["dayMaster"] != chartJSON["dayMaster"] {
		t.Errorf("yaml dayMaster = %v, json = %v", chartYAML["dayMaster"], chartJSON["dayMaster"])
	}
	if fromYAML["personality"] != fromJSON["personality"] {
		t.Error("yaml personality differs from json")
	}
	if !strings.Contains(yamlOut, "dayMaster: 丙\n") {
		t.Errorf("yaml output kept JSON quoting:\n%s", yamlOut)
	}
}

func TestChartText(t *testing.T) {
	out, err := run(t, goldenArgs...)
	if err != nil {
		t.Fatalf("chart error: %v", err)
	}
	for _, want := range []string{"庚午", "丙寅", "丙辰", "戊子", "日主 丙（火）", "身強", "食神生財", "【宮位】", "命宮"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestChartSeedIsReproducible(t *testing.T) {
	a, err := run(t, append(goldenArgs, "--format", "json")...)
	if err != nil {
		t.Fatal(err)
	}
	b, err := run(t, append(goldenArgs, "--format", "json")...)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same seed produced different reports")
	}
}

func TestChartErrors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing name", []string{"chart", "--date", "1990-01-01"}, `"name" not set`},
		{"malformed date", []string{"chart", "--name", "a", "--date", "1990/01/01"}, "want YYYY-MM-DD"},
		{"non-numeric date", []string{"chart", "--name", "a", "--date", "1990-Jan-01"}, "want YYYY-MM-DD"},
		{"impossible date", []string{"chart", "--name", "a", "--date", "1990-02-30"}, "invalid day"},
		{"unknown format", []string{"chart", "--name", "a", "--date", "1990-01-01", "--format", "xml"}, "unknown --format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestImpossibleDateIsInvalidInput(t *testing.T) {
	f := birthFlags{name: "a", date: "2001-02-29"}
	_, _, err := f.generate(newChartCmd())
	if !errors.Is(err, fate.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

var explainArgs = []string{"explain", "--name", "測試", "--date", "1990-01-01", "--hour", "子"}

func TestExplain(t *testing.T) {
	out, err := run(t, explainArgs...)
	if err != nil {
		t.Fatalf("explain error: %v", err)
	}
	for _, want := range []string{"格局 食神生財", "shi-shen-sheng-cai", "符合（選用）", "shang-guan-pei-yin"} {
		if !strings.Contains(out, want) {
			t.Errorf("explain output missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, append(explainArgs, "--format", "json")...)
	if err != nil {
		t.Fatalf("explain json error: %v", err)
	}
	var x fate.Explanation
	if err := json.Unmarshal([]byte(out), &x); err != nil {
		t.Fatalf("output is not an explanation: %v\n%s", err, out)
	}
	if x.Archetype.Name != "食神生財" || len(x.Rules) == 0 {
		t.Errorf("explanation = %+v", x)
	}
}

func TestExplainSingleRule(t *testing.T) {
	out, err := run(t, append(explainArgs, "--rule", "shi-shen-sheng-cai")...)
	if err != nil {
		t.Fatalf("explain error: %v", err)
	}
	if !strings.Contains(out, `"食神" in roles`) || !strings.Contains(out, "= true") {
		t.Errorf("single rule output should show the expression and its trace:\n%s", out)
	}

	out, err = run(t, append(explainArgs, "--rule", "shi-shen-sheng-cai", "--format", "json")...)
	if err != nil {
		t.Fatalf("explain json error: %v", err)
	}
	var r fate.RuleExplanation
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a rule explanation: %v\n%s", err, out)
	}
	if !r.Matched || r.Selected || len(r.Trace) == 0 {
		t.Errorf("rule explanation = %+v", r)
	}

	if _, err := run(t, append(explainArgs, "--rule", "nope")...); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("unknown rule error = %v, want ErrRuleNotFound", err)
	}
	if _, err := run(t, append(explainArgs, "--format", "yaml")...); err == nil || !strings.Contains(err.Error(), "unknown --format") {
		t.Errorf("yaml format error = %v, want unknown --format", err)
	}
}

func TestSnippet(t *testing.T) {
	src := []rune(`"食神" in roles && ("正財" in roles || "偏財" in roles)`)
	testCases := []struct {
		offset int
		want   string
	}{
		{0, `"食神" in roles &&…`},
		{5, `in roles && ("正財…`},
		{len(src) - 6, `roles)`},
		{-1, ""},
		{len(src), ""},
	}
	for _, tc := range testCases {
		if got := snippet(src, tc.offset); got != tc.want {
			t.Errorf("snippet(%d) = %q, want %q", tc.offset, got, tc.want)
		}
	}
}

func TestAskWithoutKey(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "")
	os.Unsetenv("GENAI_API_KEY")

	_, err := run(t, "ask", "--name", "a", "--date", "1990-01-01", "--question", "今年？")
	if !errors.Is(err, oracle.ErrDisabled) {
		t.Errorf("error = %v, want ErrDisabled", err)
	}
}

func TestListingCommands(t *testing.T) {
	out, err := run(t, "hours")
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 13 {
		t.Errorf("hours printed %d lines, want 13", len(lines))
	}

	out, err = run(t, "quote-categories")
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []string{"turning-point", "imbalance", "stable"} {
		if !strings.Contains(out, c) {
			t.Errorf("quote-categories missing %s:\n%s", c, out)
		}
	}

	out, err = run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "fatechart dev") {
		t.Errorf("version = %q", out)
	}
}
