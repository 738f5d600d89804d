package api

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Collection paths on the backend.
const (
	UsersPath       = "/api/v1/users"
	OwnersPath      = "/api/v1/owners"
	ProductsPath    = "/api/v1/products"
	MeditationsPath = "/api/v1/meditations"
)

// Resources groups every collection of the admin backend.
type Resources struct {
	Users       *Collection[User]
	Owners      *Collection[Owner]
	Products    *Collection[Product]
	Meditations *Collection[Meditation]
}

// NewResources wires all collections to one transport.
func NewResources(transport Transport, logger zerolog.Logger) *Resources {
	return &Resources{
		Users:       NewCollection[User]("users", UsersPath, transport, logger),
		Owners:      NewCollection[Owner]("owners", OwnersPath, transport, logger),
		Products:    NewCollection[Product]("products", ProductsPath, transport, logger),
		Meditations: NewCollection[Meditation]("meditations", MeditationsPath, transport, logger),
	}
}

// CollectionNames lists the valid collection names, sorted.
func CollectionNames() []string {
	names := []string{"users", "owners", "products", "meditations"}
	sort.Strings(names)
	return names
}

// CheckName returns an error for an unknown collection name.
func CheckName(name string) error {
	for _, n := range CollectionNames() {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("unknown collection %q (want one of %v)", name, CollectionNames())
}
