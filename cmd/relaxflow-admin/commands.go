package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Sternrassler/relaxflow-admin/internal/config"
	"github.com/Sternrassler/relaxflow-admin/pkg/api"
	"github.com/Sternrassler/relaxflow-admin/pkg/pagination"
)

type ListCmd struct {
	Collection string `arg:"" enum:"users,owners,products,meditations" help:"Collection to list (${enum})."`
	Page       int    `short:"p" default:"1" help:"Page to show."`
	Limit      int    `short:"l" help:"Rows per page (defaults to --page-size)."`
	Search     string `short:"s" help:"Filter term. Disables paging and returns every match."`
	JSON       bool   `name:"json" help:"Print the listing state as JSON."`
}

func (c *ListCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	opts := listOptions{page: c.Page, limit: c.Limit, search: c.Search, json: c.JSON}
	if opts.limit <= 0 {
		opts.limit = s.cfg.PageSize
	}

	switch c.Collection {
	case "users":
		return runList(ctx, s, s.res.Users, userView, opts)
	case "owners":
		return runList(ctx, s, s.res.Owners, ownerView, opts)
	case "products":
		return runList(ctx, s, s.res.Products, productView, opts)
	case "meditations":
		return runList(ctx, s, s.res.Meditations, meditationView, opts)
	}
	return api.CheckName(c.Collection)
}

type listOptions struct {
	page   int
	limit  int
	search string
	json   bool
}

// runList loads the count and first page, then navigates to the requested
// page or applies the search term.
func runList[T pagination.Record](ctx context.Context, s *session, col *api.Collection[T], v view[T], opts listOptions) error {
	store := pagination.NewStore[T](s.logger)
	coord := pagination.NewCoordinator[T](col.Name(), col, store, s.logger)

	store.Update(func(st pagination.State[T]) pagination.State[T] {
		return st.SetPagination(pagination.PaginationPatch{Mode: pagination.Paged{Limit: opts.limit}})
	})

	coord.InitializePagination(ctx)
	switch {
	case opts.search != "":
		coord.SetSearchAndFetch(ctx, opts.search)
	case opts.page > 1:
		coord.GoToPageAndFetch(ctx, opts.page)
	}

	st := store.State()
	if msg, ok := st.ErrorMessage(); ok {
		return errors.New(msg)
	}

	if opts.json {
		return writeJSON(s.out, listingJSON(st))
	}
	return renderListing(s.out, v, st)
}

type ExportCmd struct {
	Collection string `arg:"" enum:"users,owners,products,meditations" help:"Collection to export (${enum})."`
	Search     string `short:"s" help:"Only export matching rows."`
}

func (c *ExportCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	switch c.Collection {
	case "users":
		return runExport(ctx, s, s.res.Users, c.Search)
	case "owners":
		return runExport(ctx, s, s.res.Owners, c.Search)
	case "products":
		return runExport(ctx, s, s.res.Products, c.Search)
	case "meditations":
		return runExport(ctx, s, s.res.Meditations, c.Search)
	}
	return api.CheckName(c.Collection)
}

func runExport[T pagination.Record](ctx context.Context, s *session, col *api.Collection[T], search string) error {
	fetcher := pagination.NewBatchFetcher[T](col, s.cfg.BatchConfig(), s.logger.With().Str("collection", col.Name()).Logger())

	rows, err := fetcher.FetchAll(ctx, search)
	if err != nil {
		return fmt.Errorf("export %s: %w", col.Name(), err)
	}
	return writeJSON(s.out, rows)
}

type CreateUserCmd struct {
	FirstName string `name:"first-name" required:"" help:"First name."`
	LastName  string `name:"last-name" required:"" help:"Last name."`
	Email     string `required:"" help:"Email address."`
	Role      string `default:"User" enum:"Admin,User" help:"Role (${enum})."`
	Status    string `default:"Active" enum:"Active,Inactive" help:"Status (${enum})."`
}

func (c *CreateUserCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.res.Users.Create(ctx, api.UserInput{
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Role:      c.Role,
		Status:    c.Status,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Created user %d (%s)\n", user.ID, user.Email)
	return nil
}

type UpdateUserCmd struct {
	ID     int64  `arg:"" help:"User id."`
	Role   string `help:"New role (Admin or User)."`
	Status string `help:"New status (Active or Inactive)."`
}

func (c *UpdateUserCmd) Run(ctx context.Context, g *Globals) error {
	if c.Role == "" && c.Status == "" {
		return errors.New("nothing to update: pass --role or --status")
	}

	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	user, err := s.res.Users.Update(ctx, c.ID, api.UserPatch{Role: c.Role, Status: c.Status})
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Updated user %d: role=%s status=%s\n", user.ID, user.Role, user.Status)
	return nil
}

type DeleteCmd struct {
	Collection string `arg:"" enum:"users,owners,products,meditations" help:"Collection (${enum})."`
	ID         int64  `arg:"" help:"Record id."`
}

func (c *DeleteCmd) Run(ctx context.Context, g *Globals) error {
	s, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var del interface {
		Delete(ctx context.Context, id int64) error
	}
	switch c.Collection {
	case "users":
		del = s.res.Users
	case "owners":
		del = s.res.Owners
	case "products":
		del = s.res.Products
	case "meditations":
		del = s.res.Meditations
	default:
		return api.CheckName(c.Collection)
	}

	if err := del.Delete(ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Deleted %s %d\n", c.Collection, c.ID)
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintln(g.Out, config.Version)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
