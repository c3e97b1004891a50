package models

// Person represents someone expenses are shared with.
//
// One person per owner may be the "self" person: the record whose ID equals
// the owning account's ID. Before identity migration runs, the self person
// carries a locally generated UUID instead; migration remaps it.
type Person struct {
	SyncMeta

	// Name is the display name. It participates in the deterministic
	// ordering the split calculator uses to assign remainder cents.
	Name string `json:"name"`

	// Archived hides the person from pickers without deleting history.
	Archived bool `json:"archived"`

	// PhotoPath is the local path of the person's photo, if any.
	PhotoPath string `json:"photo_path,omitempty"`

	// PhotoURL is the remote URL assigned when the photo is uploaded.
	PhotoURL string `json:"photo_url,omitempty"`
}

// IsSelf reports whether this is the owner's own person record.
func (p *Person) IsSelf() bool {
	return p.ID == p.OwnerID
}
