package scene

// namedAttr is one preserved attribute of an unknown component in text form.
type namedAttr struct {
	Name  string
	Type  string
	Value string
}

// UnknownComponent stands in for a component whose type has no registered
// factory, keeping the loaded attribute payload so the file round-trips
// losslessly. Binary loads preserve the raw positional block; XML and JSON
// loads preserve name/value pairs. Saving to the format the data came from
// reproduces it exactly; converting an unknown binary payload to a text
// format (or back) drops the attributes, since the positional block cannot
// be interpreted without the original attribute table.
type UnknownComponent struct {
	BaseComponent

	typeName string
	raw      []byte
	text     []namedAttr
	useText  bool
}

// NewUnknownComponent creates a placeholder for the named type.
func NewUnknownComponent(typeName string) *UnknownComponent {
	u := &UnknownComponent{typeName: typeName}
	u.bind(u)
	return u
}

func (u *UnknownComponent) TypeName() string { return u.typeName }

func (u *UnknownComponent) setBinary(raw []byte) {
	u.raw = append([]byte(nil), raw...)
	u.useText = false
}

func (u *UnknownComponent) setText(attrs []namedAttr) {
	u.text = attrs
	u.useText = true
}
