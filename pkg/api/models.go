package api

import "time"

// User is a dashboard account.
type User struct {
	ID        int64      `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
}

func (u User) RecordID() int64 { return u.ID }

// Name is the display name.
func (u User) Name() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserInput is the create/update body for a user.
type UserInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"required,oneof=Admin User"`
	Status    string `json:"status" validate:"required,oneof=Active Inactive"`
}

// UserPatch changes a user's role or status. Empty fields are not sent.
type UserPatch struct {
	Role   string `json:"role,omitempty" validate:"omitempty,oneof=Admin User"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=Active Inactive"`
}

// Location is a venue run by an owner.
type Location struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	DeviceIDs []string `json:"deviceIds"`
}

// Owner is a business operating RelaxFlow devices.
type Owner struct {
	ID        int64      `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Status    string     `json:"status"`
	Locations []Location `json:"locations"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (o Owner) RecordID() int64 { return o.ID }

// OwnerInput is the create/update body for an owner.
type OwnerInput struct {
	FirstName string     `json:"firstName" validate:"required"`
	LastName  string     `json:"lastName" validate:"required"`
	Email     string     `json:"email" validate:"required,email"`
	Phone     string     `json:"phone" validate:"required"`
	Status    string     `json:"status" validate:"required,oneof=active inactive"`
	Locations []Location `json:"locations,omitempty" validate:"dive"`
}

// Product is a catalogue item.
type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	Status        string  `json:"status"`
	Category      string  `json:"category"`
	Image         string  `json:"image,omitempty"`
	IsActive      bool    `json:"isActive"`
}

func (p Product) RecordID() int64 { return p.ID }

// ProductInput is the create/update body for a product.
type ProductInput struct {
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description"`
	Price         float64 `json:"price" validate:"gte=0"`
	StockQuantity int     `json:"stockQuantity" validate:"gte=0"`
	Category      string  `json:"category" validate:"required,oneof=therapy meditation accessories software"`
	IsActive      bool    `json:"isActive"`
}

// Meditation is a music meditation track.
type Meditation struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Duration        string `json:"duration"`
	DurationMinutes int    `json:"durationMinutes"`
	Category        string `json:"category"`
	Artist          string `json:"artist"`
	Description     string `json:"description"`
	Thumbnail       string `json:"thumbnail,omitempty"`
	AudioURL        string `json:"audioUrl,omitempty"`
}

func (m Meditation) RecordID() int64 { return m.ID }

// MeditationInput is the create/update body for a meditation.
type MeditationInput struct {
	Title       string `json:"title" validate:"required"`
	Duration    string `json:"duration" validate:"required"`
	Category    string `json:"category" validate:"required,oneof=relaxation healing meditation sleep"`
	Artist      string `json:"artist" validate:"required"`
	Description string `json:"description"`
}
