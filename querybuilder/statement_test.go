package querybuilder

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqb/expr"
	"github.com/roach88/eqb/internal/qctx"
	"github.com/roach88/eqb/internal/testutil"
	"github.com/roach88/eqb/qerr"
)

func nameIs(v string) expr.Selector {
	return func(x *expr.Param) expr.Expr { return expr.Eq(x.Field("Name"), expr.Val(v)) }
}

func TestInsert(t *testing.T) {
	q := build(t, New[Person](quiet()).Insert(&Person{Name: "Alice", Age: testutil.IntPtr(30)}))
	assert.Equal(t,
		"insert Person { full_name := <str>$p_1, age := <int64>$p_2, best_friend := {}, friends := {} }",
		q.Text)
	assert.Equal(t, map[string]any{"p_1": "Alice", "p_2": 30}, q.Parameters)
}

func TestInsertNil(t *testing.T) {
	b := New[Person]().Insert(nil)
	assert.ErrorIs(t, b.Err(), qerr.ErrMalformedShape)
}

func TestInsertNestedLink(t *testing.T) {
	alice := &Person{Name: "Alice", BestFriend: &Person{Name: "Bob"}}
	b := New[Person](quiet(), qctx.WithIncludeEmptySets(false), qctx.WithSchema(testutil.Schema())).Insert(alice)

	q := build(t, b)
	assert.Equal(t,
		"insert Person { full_name := <str>$p_1, best_friend := "+
			"(insert Person { full_name := <str>$p_2 } unless conflict on .full_name else (select Person)) }",
		q.Text)
	assert.Equal(t, map[string]any{"p_1": "Alice", "p_2": "Bob"}, q.Parameters)
}

func TestInsertSharedLinkBecomesGlobal(t *testing.T) {
	bob := &Person{Name: "Bob"}
	alice := &Person{Name: "Alice", BestFriend: bob, Friends: []*Person{bob}}

	q := build(t, New[Person](quiet(), qctx.WithIncludeEmptySets(false)).Insert(alice))
	assert.Equal(t,
		"with person_1 := (insert Person { full_name := <str>$p_2 }) "+
			"insert Person { full_name := <str>$p_1, best_friend := person_1, friends := { person_1 } }",
		q.Text)
	assert.Equal(t, map[string]any{"p_1": "Alice", "p_2": "Bob"}, q.Parameters)
}

func TestInsertGlobalJoinsWithBlock(t *testing.T) {
	bob := &Person{Name: "Bob"}
	alice := &Person{Name: "Alice", BestFriend: bob, Friends: []*Person{bob}}

	b := New[Person](quiet(), qctx.WithIncludeEmptySets(false)).
		With("n", expr.Val("x")).
		Insert(alice)

	q := build(t, b)
	assert.Equal(t,
		"with person_1 := (insert Person { full_name := <str>$p_2 }), n := <str>$p_3 "+
			"insert Person { full_name := <str>$p_1, best_friend := person_1, friends := { person_1 } }",
		q.Text)
	assert.Len(t, q.Parameters, 3)
}

func TestInsertCycle(t *testing.T) {
	alice := &Person{Name: "Alice"}
	alice.BestFriend = alice

	_, err := New[Person](quiet()).Insert(alice).Build()
	assert.ErrorIs(t, err, qerr.ErrReferenceExtraction)
}

func TestInsertTrackedLink(t *testing.T) {
	tracker := NewTracker()
	bob := &Person{Name: "Bob"}
	id := uuid.MustParse("0190f3a4-5b6c-7d8e-9f00-112233445566")
	tracker.Track(bob, id)

	alice := &Person{Name: "Alice", BestFriend: bob}
	b := New[Person](quiet(), qctx.WithIncludeEmptySets(false), qctx.WithTracker(tracker)).Insert(alice)

	q := build(t, b)
	assert.Equal(t,
		"insert Person { full_name := <str>$p_1, best_friend := (select Person filter .id = <uuid>$p_2) }",
		q.Text)
	assert.Equal(t, map[string]any{"p_1": "Alice", "p_2": id}, q.Parameters)
}

func TestInsertSubQueryLink(t *testing.T) {
	bob := New[Person]().SelectProps(name).Filter(nameIs("Bob")).SubQuery()
	alice := &Person{Name: "Alice", BestFriend: bob}

	q := build(t, New[Person](quiet(), qctx.WithIncludeEmptySets(false)).Insert(alice))
	assert.Equal(t,
		"insert Person { full_name := <str>$p_1, best_friend := "+
			"(select Person { full_name } filter (.full_name = <str>$p_2) limit 1) }",
		q.Text)
}

func TestInsertEnumAndConflict(t *testing.T) {
	movie := &testutil.Movie{Title: "Heat", Year: 1995, Genre: testutil.GenreDrama, Notes: "skipped"}

	b := New[testutil.Movie](quiet(), qctx.WithIncludeEmptySets(false)).Insert(movie).UnlessConflict()

	q, err := b.BuildWith(qctx.WithSchema(testutil.Schema()))
	require.NoError(t, err)
	assert.Equal(t,
		`insert Movie { title := <str>$p_1, year := <int64>$p_2, genre := "drama" } unless conflict on (.title, .year)`,
		q.Text)

	_, err = b.Build()
	assert.ErrorIs(t, err, qerr.ErrIntrospectionRequired)
}

func TestUnlessConflictOn(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder[Person]
		want  string
	}{
		{
			name: "single property",
			build: func() *Builder[Person] {
				return New[Person](shallow(qctx.WithIncludeEmptySets(false))...).
					Insert(&Person{Name: "Alice"}).
					UnlessConflictOn(name)
			},
			want: "insert Person { full_name := <str>$p_1 } unless conflict on .full_name",
		},
		{
			name: "several properties",
			build: func() *Builder[Person] {
				return New[Person](shallow(qctx.WithIncludeEmptySets(false))...).
					Insert(&Person{Name: "Alice"}).
					UnlessConflictOn(name, age)
			},
			want: "insert Person { full_name := <str>$p_1 } unless conflict on (.full_name, .age)",
		},
		{
			name: "else select",
			build: func() *Builder[Person] {
				return New[Person](shallow(qctx.WithIncludeEmptySets(false))...).
					Insert(&Person{Name: "Alice"}).
					UnlessConflictOn(name).
					ElseSelect()
			},
			want: "insert Person { full_name := <str>$p_1 } unless conflict on .full_name " +
				"else (select Person { id, full_name, age, best_friend: { id }, friends: { id } })",
		},
		{
			name: "else sub-query",
			build: func() *Builder[Person] {
				return New[Person](shallow(qctx.WithIncludeEmptySets(false))...).
					Insert(&Person{Name: "Alice"}).
					UnlessConflictOn(name).
					Else(New[Person]().SelectProps(name))
			},
			want: "insert Person { full_name := <str>$p_1 } unless conflict on .full_name else (select Person { full_name })",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := build(t, tt.build())
			assert.Equal(t, tt.want, q.Text)
			assert.Equal(t, map[string]any{"p_1": "Alice"}, q.Parameters)
		})
	}
}

func TestUnlessConflictWithElseNeedsConstraint(t *testing.T) {
	b := New[testutil.Letter](quiet(), qctx.WithIncludeEmptySets(false)).
		Insert(&testutil.Letter{Value: 'a', Word: "a"}).
		UnlessConflict()

	q, err := b.BuildWith(qctx.WithSchema(testutil.Schema()))
	require.NoError(t, err)
	assert.Equal(t, "insert Letter { value := <str>$p_1, word := <str>$p_2 } unless conflict", q.Text)

	b = New[testutil.Letter](quiet(), qctx.WithIncludeEmptySets(false)).
		Insert(&testutil.Letter{Value: 'a', Word: "a"}).
		UnlessConflict().
		ElseSelect()
	_, err = b.BuildWith(qctx.WithSchema(testutil.Schema()))
	assert.ErrorIs(t, err, qerr.ErrNoExclusiveConstraint)
}

func TestUpdate(t *testing.T) {
	b := New[Person](quiet(), qctx.WithIncludeEmptySets(false)).
		Update(&Person{Name: "Bob"}).
		Filter(nameIs("Alice"))

	q := build(t, b)
	assert.Equal(t, "update Person filter (.full_name = <str>$p_1) set { full_name := <str>$p_2 }", q.Text)
	assert.Equal(t, map[string]any{"p_1": "Alice", "p_2": "Bob"}, q.Parameters)
}

func TestUpdateWith(t *testing.T) {
	b := New[Person](quiet()).UpdateWith(func(x *expr.Param) *expr.MemberInit {
		return expr.Init[Person](expr.Set("Age", expr.Add(x.Field("Age"), expr.Lit(1))))
	})

	q := build(t, b)
	assert.Equal(t, "update Person set { age := (.age + 1) }", q.Text)
	assert.Empty(t, q.Parameters)
}

func TestUpdateRef(t *testing.T) {
	rename := func(v string) func(*expr.Param) *expr.MemberInit {
		return func(*expr.Param) *expr.MemberInit {
			return expr.Init[Person](expr.Set("Name", expr.Val(v)))
		}
	}

	t.Run("tracked result", func(t *testing.T) {
		tracker := NewTracker()
		carl := &Person{}
		id := uuid.MustParse("0190f3a4-5b6c-7d8e-9f00-aabbccddeeff")
		tracker.Track(carl, id)

		q := build(t, New[Person](quiet(), qctx.WithTracker(tracker)).UpdateRef(carl, rename("Carl")))
		assert.Equal(t, "update Person filter .id = <uuid>$p_1 set { full_name := <str>$p_2 }", q.Text)
		assert.Equal(t, map[string]any{"p_1": id, "p_2": "Carl"}, q.Parameters)
	})

	t.Run("sub-query", func(t *testing.T) {
		ref := New[Person]().SelectProps(name).Filter(nameIs("Alice")).SubQuery()

		q := build(t, New[Person](quiet()).UpdateRef(ref, rename("Bob")))
		assert.Equal(t,
			"update (select Person { full_name } filter (.full_name = <str>$p_1)) set { full_name := <str>$p_2 }",
			q.Text)
	})

	t.Run("untracked", func(t *testing.T) {
		_, err := New[Person](quiet(), qctx.WithTracker(NewTracker())).UpdateRef(&Person{}, rename("X")).Build()
		assert.ErrorIs(t, err, qerr.ErrReferenceExtraction)
	})

	t.Run("nil", func(t *testing.T) {
		b := New[Person]().UpdateRef(nil, rename("X"))
		assert.ErrorIs(t, b.Err(), qerr.ErrReferenceExtraction)
	})
}

func TestDelete(t *testing.T) {
	b := Delete[Person]().
		Filter(func(x *expr.Param) expr.Expr { return expr.Gt(x.Field("Age"), expr.Val(65)) }).
		Limit(1)

	q := build(t, b, quiet())
	assert.Equal(t, "delete Person filter (.age > <int64>$p_1) limit 1", q.Text)
	assert.Equal(t, map[string]any{"p_1": 65}, q.Parameters)
}
