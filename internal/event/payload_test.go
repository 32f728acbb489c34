package event

import (
	"testing"

	"github.com/livefir/liveclient/internal/dom"
)

func parseForm(t *testing.T, body string) *dom.Document {
	t.Helper()
	d, err := dom.ParseDocumentString(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestSerializeForm(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "text inputs",
			body: `<form id="f"><input name="user" value="ada"><input name="lang" value="go"></form>`,
			want: "lang=go&user=ada",
		},
		{
			name: "unnamed controls skipped",
			body: `<form id="f"><input value="x"><input name="a" value="1"></form>`,
			want: "a=1",
		},
		{
			name: "checkbox keyed by value with bool",
			body: `<form id="f"><input type="checkbox" name="opts" value="dark" checked><input type="checkbox" name="opts" value="beta"></form>`,
			want: "beta=false&dark=true",
		},
		{
			name: "checkbox without value falls back to name",
			body: `<form id="f"><input type="checkbox" name="agree" checked></form>`,
			want: "agree=true",
		},
		{
			name: "radio contributes only checked member",
			body: `<form id="f"><input type="radio" name="size" value="s"><input type="radio" name="size" value="m" checked><input type="radio" name="size" value="l"></form>`,
			want: "size=m",
		},
		{
			name: "textarea",
			body: `<form id="f"><textarea name="note">hello</textarea></form>`,
			want: "note=hello",
		},
		{
			name: "single select",
			body: `<form id="f"><select name="c"><option value="a">A</option><option value="b" selected>B</option></select></form>`,
			want: "c=b",
		},
		{
			name: "multi select adds each selected",
			body: `<form id="f"><select name="c" multiple><option value="a" selected>A</option><option value="b" selected>B</option><option value="x">X</option></select></form>`,
			want: "c=a&c=b",
		},
		{
			name: "file inputs skipped",
			body: `<form id="f"><input type="file" name="up"><input name="a" value="1"></form>`,
			want: "a=1",
		},
		{
			name: "values url encoded",
			body: `<form id="f"><input name="q" value="a b&c"></form>`,
			want: "q=a+b%26c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := parseForm(t, tt.body)
			form := dom.FindByAttr(d.Root, "id", "f")
			if form == nil {
				t.Fatal("form not found")
			}
			if got := serializeForm(d, form); got != tt.want {
				t.Errorf("serializeForm = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSerializeFormUsesLiveValues(t *testing.T) {
	d := parseForm(t, `<form id="f"><input id="i" name="q" value="server"></form>`)
	input := dom.FindByAttr(d.Root, "id", "i")
	d.SetValue(input, "typed")
	form := dom.FindByAttr(d.Root, "id", "f")
	if got := serializeForm(d, form); got != "q=typed" {
		t.Errorf("serializeForm = %q", got)
	}
}

func TestInputValue(t *testing.T) {
	d := parseForm(t, `<div>
		<input id="t" type="text" value="txt">
		<input id="c" type="checkbox" checked>
		<input id="r" type="radio">
		<select id="s"><option value="a">A</option><option value="b" selected>B</option></select>
		<select id="m" multiple><option value="a" selected>A</option><option value="b" selected>B</option></select>
		<select id="none" multiple><option value="a">A</option></select>
		<textarea id="ta">body</textarea>
	</div>`)

	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "t")); got != "txt" {
		t.Errorf("text = %v", got)
	}
	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "c")); got != true {
		t.Errorf("checkbox = %v", got)
	}
	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "r")); got != false {
		t.Errorf("radio = %v", got)
	}
	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "s")); got != "b" {
		t.Errorf("single select = %v", got)
	}
	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "m")); !equalValues(got, []string{"a", "b"}) {
		t.Errorf("multi select = %v", got)
	}
	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "none")); !equalValues(got, []string{}) {
		t.Errorf("empty multi select = %v", got)
	}
	if got := inputValue(d, dom.FindByAttr(d.Root, "id", "ta")); got != "body" {
		t.Errorf("textarea = %v", got)
	}
}

func equalValues(got interface{}, want []string) bool {
	gs, ok := got.([]string)
	if !ok || len(gs) != len(want) {
		return false
	}
	for i := range gs {
		if gs[i] != want[i] {
			return false
		}
	}
	return true
}

func TestMessageToken(t *testing.T) {
	tests := []struct {
		literal string
		want    string
	}{
		{"increment", `"increment"`},
		{`{"kind":"incr"}`, `{"kind":"incr"}`},
		{`"already quoted"`, `"already quoted"`},
		{"42", "42"},
		{"", `""`},
		{`{"broken":`, `"{\"broken\":"`},
	}
	for _, tt := range tests {
		if got := string(MessageToken(tt.literal)); got != tt.want {
			t.Errorf("MessageToken(%q) = %s, want %s", tt.literal, got, tt.want)
		}
	}
}
