package command

import (
	"errors"
	"strings"
	"testing"

	"symcraft.ai/internal/sim/symmetry"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want Command
	}{
		{"sym", nil, Command{Kind: KindToggleView}},
		{"/sym", []string{"toggle"}, Command{Kind: KindToggleEnabled}},
		{"sym", []string{"set"}, Command{Kind: KindSetCenter}},
		{"sym", []string{"set", "AUTO"}, Command{Kind: KindSetCenter, Auto: true}},
		{"sym", []string{"set", "now"}, Command{Kind: KindSetCenter}},
		{"sym", []string{"auto"}, Command{Kind: KindAutoDetect}},
		{"SYM", []string{"Delete"}, Command{Kind: KindDeleteCenter}},
		{"sym", []string{"n6s"}, Command{Kind: KindSelectType, Group: symmetry.Rotational6}},
		{"sym", []string{"M4S"}, Command{Kind: KindSelectType, Group: symmetry.Mirror4}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.name, tc.args)
		if err != nil {
			t.Fatalf("Parse(%s %v): %v", tc.name, tc.args, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%s %v)=%+v want %+v", tc.name, tc.args, got, tc.want)
		}
		if got.Quiet() {
			t.Fatalf("chat commands are not quiet")
		}
	}
}

func TestParse_Errors(t *testing.T) {
	if _, err := Parse("build", nil); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
	_, err := Parse("sym", []string{"m3s"})
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
	for _, name := range symmetry.GroupNames() {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error should list %s: %v", name, err)
		}
	}
	_, err = Parse("sym", []string{"togle"})
	if !errors.Is(err, ErrUnknownType) || !strings.Contains(err.Error(), `did you mean "toggle"`) {
		t.Fatalf("expected toggle suggestion, got %v", err)
	}
}

func TestParseControl(t *testing.T) {
	cases := []struct {
		id   string
		want Command
	}{
		{"ToggleBtn", Command{Kind: KindToggleEnabled, Source: SourceControl}},
		{"SetBtn", Command{Kind: KindSetCenter, Auto: true, Source: SourceControl}},
		{"DeleteBtn", Command{Kind: KindDeleteCenter, Source: SourceControl}},
		{"Typen3s", Command{Kind: KindSelectType, Group: symmetry.Rotational3, Source: SourceControl}},
		{"TypeM2S", Command{Kind: KindSelectType, Group: symmetry.Mirror2, Source: SourceControl}},
	}
	for _, tc := range cases {
		got, err := ParseControl(tc.id)
		if err != nil || got != tc.want {
			t.Fatalf("ParseControl(%s)=%+v,%v want %+v", tc.id, got, err, tc.want)
		}
		if !got.Quiet() {
			t.Fatalf("controls are quiet")
		}
	}
	if got, err := Parse("ui", []string{"SetBtn"}); err != nil || got.Kind != KindSetCenter || !got.Auto || !got.Quiet() {
		t.Fatalf("ui SetBtn=%+v,%v", got, err)
	}
	if _, err := Parse("ui", nil); !errors.Is(err, ErrUnknownControl) {
		t.Fatalf("bare ui err=%v", err)
	}
	for _, id := range []string{"Type", "Typex9s", "CloseBtn", ""} {
		if _, err := ParseControl(id); !errors.Is(err, ErrUnknownControl) {
			t.Fatalf("ParseControl(%q) err=%v", id, err)
		}
	}
}

func TestSuggest(t *testing.T) {
	all := append([]string{"toggle", "set", "auto", "delete"}, symmetry.GroupNames()...)
	cases := map[string]string{
		"n4":      "n4s",
		"dlete":   "delete",
		"aoto":    "auto",
		"zzzzzzz": "",
		"":        "",
	}
	for in, want := range cases {
		if got := Suggest(in, all); got != want {
			t.Fatalf("Suggest(%q)=%q want %q", in, got, want)
		}
	}
}
