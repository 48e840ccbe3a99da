package model

// Item is the single entity held by the registry.  The JSON shape
// {"id": <int>, "name": <string>} is part of the public API.
//
// Fields:
//
//	ID   – positive identifier assigned at creation.
//	Name – non-empty display name.
type Item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SeedItems returns the collection every registry starts with.
func SeedItems() []Item {
	return []Item{
		{ID: 1, Name: "Item One"},
		{ID: 2, Name: "Item Two"},
		{ID: 3, Name: "Item Three"},
	}
}
