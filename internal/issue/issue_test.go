// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
	"testing"
)

func TestValues_CoversEveryId(t *testing.T) {
	values := Values()
	if len(values) != int(CacheUnavailableId) {
		t.Fatalf("len(Values()) = %d, want %d", len(values), CacheUnavailableId)
	}
	for i, v := range values {
		if want := Id(i + 1); v.Id() != want {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), want)
		}
		if strings.TrimSpace(string(v.MarkdownMsg())) == "" {
			t.Errorf("issue %d has an empty message", v.Id())
		}
	}
}

func TestGet_Unknown(t *testing.T) {
	if Get(Id(999)) != nil {
		t.Error("Get(999) returned an issue")
	}
}

func TestIssue_LinksAreCopies(t *testing.T) {
	i := Get(EngineNotFoundId)
	links := i.ExtLinks()
	links[0] = "mutated"
	if i.ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() exposed internal slice")
	}
}

func TestIssue_Render(t *testing.T) {
	original := render
	defer func() { render = original }()

	var got string
	render = func(in, style string) (string, error) {
		got = in
		return "rendered:" + style, nil
	}

	out, err := Get(EngineNotFoundId).Render("dark")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if out != "rendered:dark" {
		t.Errorf("Render() = %q", out)
	}
	if !strings.Contains(got, "# Workflow engine not found!") || !strings.Contains(got, "## See also") {
		t.Errorf("markdown passed to renderer missing sections:\n%s", got)
	}

	render = func(string, string) (string, error) { return "", errors.New("boom") }
	if _, err := Get(EntryInvalidId).Render("dark"); err == nil {
		t.Error("Render() swallowed renderer error")
	}
}
