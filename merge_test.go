package liveclient

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustTemplate(t *testing.T, wire string) *Template {
	t.Helper()
	var tmpl Template
	if err := json.Unmarshal([]byte(wire), &tmpl); err != nil {
		t.Fatalf("unmarshal template %s: %v", wire, err)
	}
	return &tmpl
}

func mustDiff(t *testing.T, wire string) *TemplateDiff {
	t.Helper()
	var d TemplateDiff
	if err := json.Unmarshal([]byte(wire), &d); err != nil {
		t.Fatalf("unmarshal diff %s: %v", wire, err)
	}
	return &d
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		template string
		diff     string
		want     string
	}{
		{
			name:     "string replaces string",
			template: `{"f":["<p>","</p>"],"0":"old"}`,
			diff:     `{"0":"new"}`,
			want:     "<p>new</p>",
		},
		{
			name:     "null deletes slot",
			template: `{"f":["<p>","</p>"],"0":"old"}`,
			diff:     `{"0":null}`,
			want:     "<p></p>",
		},
		{
			name:     "untouched slots survive",
			template: `{"f":["<p>"," ","</p>"],"0":"keep","1":"old"}`,
			diff:     `{"1":"new"}`,
			want:     "<p>keep new</p>",
		},
		{
			name:     "nested diff recurses",
			template: `{"f":["<div>","</div>"],"0":{"f":["<b>","</b>"],"0":"old"}}`,
			diff:     `{"0":{"0":"new"}}`,
			want:     "<div><b>new</b></div>",
		},
		{
			name:     "nested diff keeps untouched fixed fragments",
			template: `{"f":["<div>","</div>"],"0":{"f":["<b>","</b>"],"0":"x"}}`,
			diff:     `{"0":{"0":"y"}}`,
			want:     "<div><b>y</b></div>",
		},
		{
			name:     "string to template transition materializes",
			template: `{"f":["<p>","</p>"],"0":"plain"}`,
			diff:     `{"0":{"f":["<b>","</b>"],"0":"bold"}}`,
			want:     "<p><b>bold</b></p>",
		},
		{
			name:     "template to string transition replaces",
			template: `{"f":["<p>","</p>"],"0":{"f":["<b>","</b>"],"0":"bold"}}`,
			diff:     `{"0":"plain"}`,
			want:     "<p>plain</p>",
		},
		{
			name:     "fixed replaced wholesale",
			template: `{"f":["<p>","</p>"],"0":"v"}`,
			diff:     `{"f":["<h1>","</h1>"]}`,
			want:     "<h1>v</h1>",
		},
		{
			name:     "diff for absent slot materializes",
			template: `{"f":["<p>","</p>"]}`,
			diff:     `{"0":{"f":["<b>","</b>"],"0":"fresh"}}`,
			want:     "<p><b>fresh</b></p>",
		},
		{
			name:     "loop diff to non loop slot materializes",
			template: `{"f":["<ul>","</ul>"],"0":"none"}`,
			diff:     `{"0":{"f":["<li>","</li>"],"e":{"a":{"0":"one"}},"ko":["a"]}}`,
			want:     "<ul><li>one</li></ul>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := mustTemplate(t, tt.template)
			if err := tmpl.Merge(mustDiff(t, tt.diff)); err != nil {
				t.Fatalf("merge: %v", err)
			}
			if got := tmpl.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeLoop(t *testing.T) {
	base := `{"f":["<ul>","</ul>"],"0":{"f":["<li>","</li>"],"e":{"a":{"0":"one"},"b":{"0":"two"}},"ko":["a","b"]}}`

	tests := []struct {
		name string
		diff string
		want string
	}{
		{
			name: "patch existing entry slot",
			diff: `{"0":{"e":{"b":{"0":"TWO"}}}}`,
			want: "<ul><li>one</li><li>TWO</li></ul>",
		},
		{
			name: "null entry removes key",
			diff: `{"0":{"e":{"a":null}}}`,
			want: "<ul><li>two</li></ul>",
		},
		{
			name: "new key appends in declared order",
			diff: `{"0":{"e":{"c":{"0":"three"},"d":{"0":"four"}},"ko":["d","c"]}}`,
			want: "<ul><li>one</li><li>two</li><li>four</li><li>three</li></ul>",
		},
		{
			name: "new key prepends when order declares it first",
			diff: `{"0":{"e":{"new":{"0":"zero"}},"ko":["new","a","b"]}}`,
			want: "<ul><li>zero</li><li>one</li><li>two</li></ul>",
		},
		{
			name: "new key inserted between survivors",
			diff: `{"0":{"e":{"mid":{"0":"half"}},"ko":["a","mid","b"]}}`,
			want: "<ul><li>one</li><li>half</li><li>two</li></ul>",
		},
		{
			name: "order alone reorders existing entries",
			diff: `{"0":{"e":{},"ko":["b","a"]}}`,
			want: "<ul><li>two</li><li>one</li></ul>",
		},
		{
			name: "loop fixed replaced wholesale",
			diff: `{"0":{"f":["<li class=\"x\">","</li>"],"e":{}}}`,
			want: `<ul><li class="x">one</li><li class="x">two</li></ul>`,
		},
		{
			name: "remove then reinsert keeps new position",
			diff: `{"0":{"e":{"a":null,"z":{"0":"zed"}},"ko":["z"]}}`,
			want: "<ul><li>two</li><li>zed</li></ul>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := mustTemplate(t, base)
			if err := tmpl.Merge(mustDiff(t, tt.diff)); err != nil {
				t.Fatalf("merge: %v", err)
			}
			if got := tmpl.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMergeNilDiffIsNoOp(t *testing.T) {
	tmpl := mustTemplate(t, `{"f":["<p>","</p>"],"0":"v"}`)
	before := tmpl.Render()
	if err := tmpl.Merge(nil); err != nil {
		t.Fatalf("merge nil: %v", err)
	}
	if got := tmpl.Render(); got != before {
		t.Errorf("Render() after nil merge = %q, want %q", got, before)
	}
}

func TestMergeEmptyDiffIsNoOp(t *testing.T) {
	tmpl := mustTemplate(t, `{"f":["<div>","</div>"],"0":{"f":["<b>","</b>"],"0":"x"}}`)
	want := mustTemplate(t, `{"f":["<div>","</div>"],"0":{"f":["<b>","</b>"],"0":"x"}}`)
	if err := tmpl.Merge(&TemplateDiff{}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if diff := cmp.Diff(want, tmpl); diff != "" {
		t.Errorf("template changed by empty diff (-want +got):\n%s", diff)
	}
}

func TestMergeIntoNilTemplate(t *testing.T) {
	var tmpl *Template
	err := tmpl.Merge(mustDiff(t, `{"0":"v"}`))
	if !errors.Is(err, ErrState) {
		t.Errorf("error = %v, want ErrState", err)
	}
}

// Applying the same string replacement twice must land on the same
// result as applying it once.
func TestMergeStringReplaceIdempotent(t *testing.T) {
	tmpl := mustTemplate(t, `{"f":["<p>","</p>"],"0":"old"}`)
	d := mustDiff(t, `{"0":"new"}`)
	if err := tmpl.Merge(d); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	once := tmpl.Render()
	if err := tmpl.Merge(d); err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if got := tmpl.Render(); got != once {
		t.Errorf("Render() after second merge = %q, want %q", got, once)
	}
}

func TestMergeSequence(t *testing.T) {
	tmpl := mustTemplate(t, `{"f":["<p>count: ","</p>"],"0":"0"}`)
	for i, step := range []struct{ diff, want string }{
		{`{"0":"1"}`, "<p>count: 1</p>"},
		{`{"0":"2"}`, "<p>count: 2</p>"},
		{`{"0":null}`, "<p>count: </p>"},
		{`{"0":"3"}`, "<p>count: 3</p>"},
	} {
		if err := tmpl.Merge(mustDiff(t, step.diff)); err != nil {
			t.Fatalf("step %d: merge: %v", i, err)
		}
		if got := tmpl.Render(); got != step.want {
			t.Errorf("step %d: Render() = %q, want %q", i, got, step.want)
		}
	}
}
