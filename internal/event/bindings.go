// Package event implements the declarative event-binding layer: it
// scans elements for axm-* binding attributes, attaches listeners,
// builds the compact wire payload for each fired event and applies
// debounce/throttle policies before handing the payload to the session.
package event

// Category is the wire tag identifying the payload shape of a
// client-to-server event message.
type Category string

const (
	// CategoryClick covers the payload-less element bindings: click,
	// focus and blur carry only the message token.
	CategoryClick       Category = "click"
	CategoryForm        Category = "form"
	CategoryInput       Category = "input"
	CategoryKey         Category = "key"
	CategoryMouse       Category = "mouse"
	CategoryScroll      Category = "scroll"
	CategoryWindowFocus Category = "window_focus"
	CategoryWindowBlur  Category = "window_blur"
	CategoryFile        Category = "file"
)

// Binding maps one declarative attribute to a native event name and a
// payload category. Window-scoped bindings are re-registered after
// every patch cycle instead of living on morphed nodes.
type Binding struct {
	Attr     string
	Event    string
	Category Category
	Window   bool
}

// Modifier attributes read at dispatch time.
const (
	AttrPrefix     = "axm-"
	AttrDebounce   = "axm-debounce"
	AttrThrottle   = "axm-throttle"
	AttrKeyFilter  = "axm-key"
	AttrDataPrefix = "axm-data-"
)

// Bindings is the versioned vocabulary of binding attributes.
var Bindings = []Binding{
	{Attr: "axm-click", Event: "click", Category: CategoryClick},
	{Attr: "axm-input", Event: "input", Category: CategoryInput},
	{Attr: "axm-blur", Event: "blur", Category: CategoryClick},
	{Attr: "axm-focus", Event: "focus", Category: CategoryClick},
	{Attr: "axm-change", Event: "change", Category: CategoryForm},
	{Attr: "axm-submit", Event: "submit", Category: CategoryForm},
	{Attr: "axm-keydown", Event: "keydown", Category: CategoryKey},
	{Attr: "axm-keyup", Event: "keyup", Category: CategoryKey},
	{Attr: "axm-mouseenter", Event: "mouseenter", Category: CategoryMouse},
	{Attr: "axm-mouseover", Event: "mouseover", Category: CategoryMouse},
	{Attr: "axm-mouseleave", Event: "mouseleave", Category: CategoryMouse},
	{Attr: "axm-mouseout", Event: "mouseout", Category: CategoryMouse},
	{Attr: "axm-mousemove", Event: "mousemove", Category: CategoryMouse},
	{Attr: "axm-window-focus", Event: "focus", Category: CategoryWindowFocus, Window: true},
	{Attr: "axm-window-blur", Event: "blur", Category: CategoryWindowBlur, Window: true},
	{Attr: "axm-window-keydown", Event: "keydown", Category: CategoryKey, Window: true},
	{Attr: "axm-window-keyup", Event: "keyup", Category: CategoryKey, Window: true},
	{Attr: "axm-scroll", Event: "scroll", Category: CategoryScroll, Window: true},
}
