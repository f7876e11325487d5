package command

import "fmt"

// Ref is the narrow handle another command holds on an object: enough to
// encode the object's tag and to check it belongs to the same session. The
// zero Ref refers to nothing. Refs are only obtained from a constructed
// Object, so a Ref with a tag always names something that was emitted.
type Ref struct {
	session  string
	epoch    int
	category Category
	tag      int
}

// Ref returns r itself, so a Ref can be used wherever a Referent is expected.
func (r Ref) Ref() Ref { return r }

// Tag returns the referenced object's tag.
func (r Ref) Tag() int { return r.tag }

// Category returns the referenced object's category.
func (r Ref) Category() Category { return r.category }

// Session returns the id of the session the object was constructed in.
func (r Ref) Session() string { return r.session }

// IsZero reports whether r refers to nothing.
func (r Ref) IsZero() bool { return r.tag == 0 }

func (r Ref) String() string {
	if r.IsZero() {
		return "ref(nil)"
	}
	return fmt.Sprintf("%s#%d", r.category, r.tag)
}
