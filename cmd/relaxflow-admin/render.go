package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Sternrassler/relaxflow-admin/pkg/api"
	"github.com/Sternrassler/relaxflow-admin/pkg/pagination"
)

// view renders rows of one collection as table columns.
type view[T any] struct {
	header []string
	row    func(T) []string
}

var userView = view[api.User]{
	header: []string{"ID", "NAME", "EMAIL", "ROLE", "STATUS", "LAST LOGIN"},
	row: func(u api.User) []string {
		lastLogin := "-"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("2006-01-02 15:04")
		}
		return []string{fmtID(u.ID), u.Name(), u.Email, u.Role, u.Status, lastLogin}
	},
}

var ownerView = view[api.Owner]{
	header: []string{"ID", "NAME", "EMAIL", "PHONE", "STATUS", "LOCATIONS"},
	row: func(o api.Owner) []string {
		return []string{fmtID(o.ID), o.FirstName + " " + o.LastName, o.Email, o.Phone, o.Status, strconv.Itoa(len(o.Locations))}
	},
}

var productView = view[api.Product]{
	header: []string{"ID", "NAME", "CATEGORY", "PRICE", "STOCK", "ACTIVE"},
	row: func(p api.Product) []string {
		return []string{fmtID(p.ID), p.Name, p.Category, fmt.Sprintf("%.2f", p.Price), strconv.Itoa(p.StockQuantity), strconv.FormatBool(p.IsActive)}
	},
}

var meditationView = view[api.Meditation]{
	header: []string{"ID", "TITLE", "ARTIST", "CATEGORY", "DURATION"},
	row: func(m api.Meditation) []string {
		return []string{fmtID(m.ID), m.Title, m.Artist, m.Category, m.Duration}
	},
}

func fmtID(v int64) string { return strconv.FormatInt(v, 10) }

// renderListing prints the rows followed by a navigation summary.
func renderListing[T pagination.Record](w io.Writer, v view[T], st pagination.State[T]) error {
	if len(st.Rows) == 0 {
		fmt.Fprintln(w, "No records found.")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(v.header, "\t"))
		for _, r := range st.Rows {
			fmt.Fprintln(tw, strings.Join(v.row(r), "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w, summary(st))
	return nil
}

func summary[T pagination.Record](st pagination.State[T]) string {
	if st.Pagination.InSearchMode() {
		return fmt.Sprintf("Search %q: %d of %d records", st.Pagination.Search, len(st.Rows), st.TotalItems)
	}

	var nav []string
	if st.HasPrevPage {
		nav = append(nav, "prev")
	}
	if st.HasNextPage {
		nav = append(nav, "next")
	}
	s := fmt.Sprintf("Page %d of %d (%d records)", st.Pagination.Page, st.TotalPages, st.TotalItems)
	if len(nav) > 0 {
		s += " [" + strings.Join(nav, " ") + "]"
	}
	return s
}

// listing is the JSON form of a listing state.
type listing[T any] struct {
	Rows        []T    `json:"rows"`
	Page        int    `json:"page"`
	Limit       *int   `json:"limit,omitempty"`
	Search      string `json:"search,omitempty"`
	TotalItems  int    `json:"totalItems"`
	TotalPages  int    `json:"totalPages"`
	HasNextPage bool   `json:"hasNextPage"`
	HasPrevPage bool   `json:"hasPrevPage"`
}

func listingJSON[T pagination.Record](st pagination.State[T]) listing[T] {
	out := listing[T]{
		Rows:        st.Rows,
		Page:        st.Pagination.Page,
		Search:      st.Pagination.Search,
		TotalItems:  st.TotalItems,
		TotalPages:  st.TotalPages,
		HasNextPage: st.HasNextPage,
		HasPrevPage: st.HasPrevPage,
	}
	if limit, ok := st.Pagination.Limit(); ok {
		out.Limit = &limit
	}
	return out
}
