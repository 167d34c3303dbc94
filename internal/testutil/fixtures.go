// Package testutil provides the entity types, schema and clock shared by
// tests across packages.
package testutil

import (
	"github.com/roach88/eqb/schema"
)

// Person is the main fixture type. Name is renamed in EdgeDB; Age is
// optional so zero values do not bind arguments.
type Person struct {
	schema.Object
	Name       string    `edgedb:"full_name"`
	Age        *int      `edgedb:"age"`
	BestFriend *Person   `edgedb:"best_friend"`
	Friends    []*Person `edgedb:"friends"`
}

// Genre is an enum written as its lowercased name.
type Genre int

const (
	GenreDrama Genre = iota
	GenreComedy
	GenreHorror
)

func (g Genre) String() string {
	switch g {
	case GenreDrama:
		return "Drama"
	case GenreComedy:
		return "Comedy"
	case GenreHorror:
		return "Horror"
	}
	return "Unknown"
}

func (Genre) EnumPolicy() schema.EnumPolicy { return schema.EnumLower }

// Rating is an enum written as its number.
type Rating int

const (
	RatingG Rating = iota + 1
	RatingPG
	RatingR
)

func (r Rating) String() string { return [...]string{"", "G", "PG", "R"}[r] }

// Movie has an object-level exclusive constraint on (title, year).
type Movie struct {
	schema.Object
	Title    string    `edgedb:"title"`
	Year     int       `edgedb:"year"`
	Genre    Genre     `edgedb:"genre"`
	Director *Person   `edgedb:"director"`
	Actors   []*Person `edgedb:"actors"`
	Notes    string    `edgedb:"-"`
}

// Letter exercises char handling and has no exclusive constraint.
type Letter struct {
	schema.Object
	Value schema.Char `edgedb:"value"`
	Word  string      `edgedb:"word"`
}

// Account is a renamed type with a single exclusive property.
type Account struct {
	schema.Object
	Email string  `edgedb:"email"`
	Owner *Person `edgedb:"owner"`
}

func (Account) EdgeDBTypeName() string { return "UserAccount" }

// Schema returns the introspected schema matching the fixture types.
func Schema() *schema.Info {
	return &schema.Info{Types: []schema.ObjectType{
		{
			Name: "default::Person",
			Properties: []schema.Property{
				{Name: "id", IsExclusive: true, IsReadonly: true, HasDefault: true},
				{Name: "full_name", Required: true, IsExclusive: true},
				{Name: "age", Cardinality: schema.CardinalityAtMostOne},
				{Name: "best_friend", IsLink: true, Cardinality: schema.CardinalityAtMostOne},
				{Name: "friends", IsLink: true, Cardinality: schema.CardinalityMany},
			},
		},
		{
			Name: "default::Movie",
			Properties: []schema.Property{
				{Name: "id", IsExclusive: true, IsReadonly: true, HasDefault: true},
				{Name: "title", Required: true},
				{Name: "year", Required: true},
				{Name: "genre"},
				{Name: "director", IsLink: true, Cardinality: schema.CardinalityAtMostOne},
				{Name: "actors", IsLink: true, Cardinality: schema.CardinalityMany},
			},
			Constraints: []schema.Constraint{
				{IsExclusive: true, SubjectExpression: "(.title, .year)"},
			},
		},
		{
			Name: "default::Letter",
			Properties: []schema.Property{
				{Name: "id", IsExclusive: true, IsReadonly: true, HasDefault: true},
				{Name: "value"},
				{Name: "word"},
			},
		},
		{
			Name: "default::UserAccount",
			Properties: []schema.Property{
				{Name: "id", IsExclusive: true, IsReadonly: true, HasDefault: true},
				{Name: "email", IsExclusive: true},
				{Name: "owner", IsLink: true},
			},
		},
	}}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
