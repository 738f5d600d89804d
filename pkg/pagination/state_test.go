package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (r row) RecordID() int64 { return r.ID }

func pagedAt(page, totalPages int) State[row] {
	st := NewState[row]()
	st.Pagination.Page = page
	return st.SetPaginationMetadata(Metadata{TotalItems: totalPages * DefaultLimit, TotalPages: totalPages})
}

func TestNewState(t *testing.T) {
	st := NewState[row]()

	assert.Equal(t, 1, st.Pagination.Page)
	limit, ok := st.Pagination.Limit()
	assert.True(t, ok)
	assert.Equal(t, DefaultLimit, limit)
	assert.Empty(t, st.Pagination.Search)
	assert.Nil(t, st.Err)
	assert.False(t, st.HasNextPage, "navigation flags start false")
	assert.False(t, st.HasPrevPage, "navigation flags start false")
}

func TestSearchModeDisablesNavigation(t *testing.T) {
	tests := []struct {
		name  string
		state State[row]
	}{
		{
			name:  "search mode on page 1",
			state: NewState[row]().SetPagination(PaginationPatch{Mode: Search{}}),
		},
		{
			name:  "search mode after metadata",
			state: NewState[row]().SetPagination(PaginationPatch{Mode: Search{}}).SetPaginationMetadata(Metadata{TotalItems: 50, TotalPages: 5}),
		},
		{
			name:  "metadata then search mode mid-listing",
			state: pagedAt(3, 5).SetPagination(PaginationPatch{Mode: Search{}}),
		},
		{
			name:  "goToPage ignored in search mode",
			state: NewState[row]().SetPagination(PaginationPatch{Mode: Search{}}).GoToPage(4),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.state.HasNextPage)
			assert.False(t, tt.state.HasPrevPage)
		})
	}
}

func TestNavigationFlags(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		totalPages int
		wantPrev   bool
		wantNext   bool
	}{
		{name: "first of three", page: 1, totalPages: 3, wantPrev: false, wantNext: true},
		{name: "middle of three", page: 2, totalPages: 3, wantPrev: true, wantNext: true},
		{name: "last of three", page: 3, totalPages: 3, wantPrev: true, wantNext: false},
		{name: "past the end", page: 7, totalPages: 3, wantPrev: true, wantNext: false},
		{name: "single page", page: 1, totalPages: 1, wantPrev: false, wantNext: false},
		{name: "unknown totals", page: 2, totalPages: 0, wantPrev: true, wantNext: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := pagedAt(tt.page, tt.totalPages)
			assert.Equal(t, tt.wantPrev, st.HasPrevPage, "HasPrevPage")
			assert.Equal(t, tt.wantNext, st.HasNextPage, "HasNextPage")
		})
	}
}

func TestSetPaginationMetadata_FirstPage(t *testing.T) {
	st := NewState[row]().SetPaginationMetadata(Metadata{TotalItems: 25, TotalPages: 3})

	assert.True(t, st.HasNextPage)
	assert.False(t, st.HasPrevPage)
	assert.Equal(t, 25, st.TotalItems)
	assert.Equal(t, 3, st.TotalPages)
}

func TestNextPage(t *testing.T) {
	t.Run("advances when next page exists", func(t *testing.T) {
		st := pagedAt(1, 3).NextPage()
		assert.Equal(t, 2, st.Pagination.Page)
		assert.True(t, st.HasPrevPage)
		assert.True(t, st.HasNextPage)
	})

	t.Run("no-op on last page", func(t *testing.T) {
		assert.Equal(t, 3, pagedAt(3, 3).NextPage().Pagination.Page)
	})

	t.Run("no-op with unknown totals", func(t *testing.T) {
		assert.Equal(t, 1, NewState[row]().NextPage().Pagination.Page)
	})

	t.Run("no-op in search mode", func(t *testing.T) {
		st := pagedAt(1, 3)
		st.Pagination.Mode = Search{}
		st.HasNextPage = true
		assert.Equal(t, 1, st.NextPage().Pagination.Page)
	})
}

func TestPrevPage(t *testing.T) {
	t.Run("moves back", func(t *testing.T) {
		st := pagedAt(3, 3).PrevPage()
		assert.Equal(t, 2, st.Pagination.Page)
		assert.True(t, st.HasNextPage, "moving back from the last page re-enables next")
	})

	t.Run("no-op on first page", func(t *testing.T) {
		assert.Equal(t, 1, pagedAt(1, 3).PrevPage().Pagination.Page)
	})
}

func TestGoToPage(t *testing.T) {
	tests := []struct {
		name     string
		target   int
		wantPage int
	}{
		{name: "in range", target: 2, wantPage: 2},
		{name: "zero clamps to first", target: 0, wantPage: 1},
		{name: "negative clamps to first", target: -4, wantPage: 1},
		{name: "beyond total is allowed", target: 9, wantPage: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantPage, pagedAt(1, 3).GoToPage(tt.target).Pagination.Page)
		})
	}
}

func TestGoToPage_UnknownTotals(t *testing.T) {
	st := NewState[row]().GoToPage(5)

	assert.Equal(t, 5, st.Pagination.Page)
	assert.False(t, st.HasNextPage, "no next page while totals are unknown")
	assert.True(t, st.HasPrevPage)
}

func TestResetPagination(t *testing.T) {
	st := pagedAt(2, 4).
		SetPagination(PaginationPatch{Mode: Search{}, Search: Ptr("calm")}).
		ResetPagination()

	assert.Equal(t, 1, st.Pagination.Page)
	limit, ok := st.Pagination.Limit()
	assert.True(t, ok)
	assert.Equal(t, DefaultLimit, limit)
	assert.Empty(t, st.Pagination.Search)
	assert.False(t, st.HasNextPage)
	assert.False(t, st.HasPrevPage)
}

func TestSetPagination_NilModeKeepsSearchMode(t *testing.T) {
	st := NewState[row]().
		SetPagination(PaginationPatch{Mode: Search{}}).
		SetPagination(PaginationPatch{Page: Ptr(1), Search: Ptr("sleep")})

	assert.True(t, st.Pagination.InSearchMode())
}

func TestSetPagination_DoesNotTouchTotals(t *testing.T) {
	st := pagedAt(1, 4).SetPagination(PaginationPatch{Page: Ptr(2), Mode: Paged{Limit: 25}})

	assert.Equal(t, 4, st.TotalPages)
}

func TestSetRowsDoesNotTouchTotals(t *testing.T) {
	st := pagedAt(1, 4).SetRows([]row{{ID: 1}, {ID: 2}})

	assert.Equal(t, 40, st.TotalItems)
	assert.Equal(t, 4, st.TotalPages)
}

func TestErrorIsNilNotEmpty(t *testing.T) {
	empty := ""
	st := NewState[row]().SetError(&empty)

	msg, ok := st.ErrorMessage()
	assert.True(t, ok, "an empty message is still an error")
	assert.Empty(t, msg)

	_, ok = st.SetError(nil).ErrorMessage()
	assert.False(t, ok)
}

func TestRowEdits(t *testing.T) {
	base := NewState[row]().SetRows([]row{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})

	t.Run("add", func(t *testing.T) {
		st := base.AddRow(row{ID: 3, Name: "c"})
		require.Len(t, st.Rows, 3)
		assert.Equal(t, int64(3), st.Rows[2].ID)
		assert.Len(t, base.Rows, 2, "AddRow must not mutate the original state")
	})

	t.Run("update existing", func(t *testing.T) {
		st := base.UpdateRow(2, func(r row) row { r.Name = "bee"; return r })
		assert.Equal(t, "bee", st.Rows[1].Name)
		assert.Equal(t, "b", base.Rows[1].Name, "UpdateRow must not mutate the original state")
	})

	t.Run("update missing is a no-op", func(t *testing.T) {
		st := base.UpdateRow(9, func(r row) row { r.Name = "x"; return r })
		assert.Equal(t, base.Rows, st.Rows)
	})

	t.Run("delete existing", func(t *testing.T) {
		st := base.DeleteRow(1)
		assert.Equal(t, []row{{ID: 2, Name: "b"}}, st.Rows)
	})

	t.Run("delete missing is a no-op", func(t *testing.T) {
		assert.Len(t, base.DeleteRow(7).Rows, len(base.Rows))
	})
}
