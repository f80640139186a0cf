package models

import (
	"time"
)

// Kind identifies one of the synchronized resource families.
type Kind string

const (
	KindLocation  Kind = "location"
	KindEVSE      Kind = "evse"
	KindConnector Kind = "connector"
	KindTariff    Kind = "tariff"
	KindSession   Kind = "session"
	KindCDR       Kind = "cdr"
	KindToken     Kind = "token"
)

// PartyRef is the country-code/party-id pair owning a resource.
type PartyRef struct {
	CountryCode string `json:"country_code"`
	PartyID     string `json:"party_id"`
}

func (p PartyRef) String() string { return p.CountryCode + "*" + p.PartyID }

// SyncKey is the composite key a resource is stored under. ID is the
// kind-specific identifier; nested resources (EVSE, Connector) use a
// slash-joined path scoped to their parents.
type SyncKey struct {
	Party PartyRef
	Kind  Kind
	ID    string
}

// Syncable is implemented by every synchronized resource. Stamp returns a
// copy with last_updated replaced; the store uses it when the writer did not
// supply a timestamp.
type Syncable interface {
	SyncKey() SyncKey
	Version() time.Time
	Stamp(t time.Time) Syncable
}

type GeoLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type Location struct {
	CountryCode string      `json:"country_code"`
	PartyID     string      `json:"party_id"`
	ID          string      `json:"id"`
	Publish     bool        `json:"publish"`
	Name        *string     `json:"name,omitempty"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	PostalCode  *string     `json:"postal_code,omitempty"`
	Country     string      `json:"country"`
	Coordinates GeoLocation `json:"coordinates"`
	TimeZone    string      `json:"time_zone,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
}

func (l Location) SyncKey() SyncKey {
	return SyncKey{Party: PartyRef{l.CountryCode, l.PartyID}, Kind: KindLocation, ID: l.ID}
}
func (l Location) Version() time.Time { return l.LastUpdated }
func (l Location) Stamp(t time.Time) Syncable {
	l.LastUpdated = t
	return l
}

// EVSE is pushed on its own sub-path; the scoping fields come from the URL,
// not the body, and therefore stay out of the JSON representation.
type EVSE struct {
	CountryCode       string       `json:"-"`
	PartyID           string       `json:"-"`
	LocationID        string       `json:"-"`
	UID               string       `json:"uid"`
	EvseID            *string      `json:"evse_id,omitempty"`
	Status            string       `json:"status"`
	FloorLevel        *string      `json:"floor_level,omitempty"`
	Coordinates       *GeoLocation `json:"coordinates,omitempty"`
	PhysicalReference *string      `json:"physical_reference,omitempty"`
	LastUpdated       time.Time    `json:"last_updated"`
}

func (e EVSE) SyncKey() SyncKey {
	return SyncKey{Party: PartyRef{e.CountryCode, e.PartyID}, Kind: KindEVSE, ID: e.LocationID + "/" + e.UID}
}
func (e EVSE) Version() time.Time { return e.LastUpdated }
func (e EVSE) Stamp(t time.Time) Syncable {
	e.LastUpdated = t
	return e
}

type Connector struct {
	CountryCode string    `json:"-"`
	PartyID     string    `json:"-"`
	LocationID  string    `json:"-"`
	EvseUID     string    `json:"-"`
	ID          string    `json:"id"`
	Standard    string    `json:"standard"`
	Format      string    `json:"format"`
	PowerType   string    `json:"power_type"`
	MaxVoltage  int       `json:"max_voltage"`
	MaxAmperage int       `json:"max_amperage"`
	TariffIDs   []string  `json:"tariff_ids,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

func (c Connector) SyncKey() SyncKey {
	return SyncKey{
		Party: PartyRef{c.CountryCode, c.PartyID},
		Kind:  KindConnector,
		ID:    c.LocationID + "/" + c.EvseUID + "/" + c.ID,
	}
}
func (c Connector) Version() time.Time { return c.LastUpdated }
func (c Connector) Stamp(t time.Time) Syncable {
	c.LastUpdated = t
	return c
}

type PriceComponent struct {
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	StepSize int     `json:"step_size"`
}

type TariffElement struct {
	PriceComponents []PriceComponent `json:"price_components"`
}

type Tariff struct {
	CountryCode string          `json:"country_code"`
	PartyID     string          `json:"party_id"`
	ID          string          `json:"id"`
	Currency    string          `json:"currency"`
	Elements    []TariffElement `json:"elements,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (t Tariff) SyncKey() SyncKey {
	return SyncKey{Party: PartyRef{t.CountryCode, t.PartyID}, Kind: KindTariff, ID: t.ID}
}
func (t Tariff) Version() time.Time { return t.LastUpdated }
func (t Tariff) Stamp(ts time.Time) Syncable {
	t.LastUpdated = ts
	return t
}

type Price struct {
	ExclVat float64  `json:"excl_vat"`
	InclVat *float64 `json:"incl_vat,omitempty"`
}

// CdrToken references the token a session or billing record was charged to.
type CdrToken struct {
	UID        string `json:"uid"`
	Type       string `json:"type"`
	ContractID string `json:"contract_id"`
}

type Session struct {
	CountryCode string     `json:"country_code"`
	PartyID     string     `json:"party_id"`
	ID          string     `json:"id"`
	StartDate   time.Time  `json:"start_date_time"`
	EndDate     *time.Time `json:"end_date_time,omitempty"`
	Kwh         float64    `json:"kwh"`
	CdrToken    CdrToken   `json:"cdr_token"`
	AuthMethod  string     `json:"auth_method"`
	AuthRef     *string    `json:"authorization_reference,omitempty"`
	LocationID  string     `json:"location_id"`
	EvseUID     string     `json:"evse_uid"`
	ConnectorID string     `json:"connector_id"`
	Currency    string     `json:"currency"`
	TotalCost   *Price     `json:"total_cost,omitempty"`
	Status      string     `json:"status"`
	LastUpdated time.Time  `json:"last_updated"`
}

func (s Session) SyncKey() SyncKey {
	return SyncKey{Party: PartyRef{s.CountryCode, s.PartyID}, Kind: KindSession, ID: s.ID}
}
func (s Session) Version() time.Time { return s.LastUpdated }
func (s Session) Stamp(t time.Time) Syncable {
	s.LastUpdated = t
	return s
}

// CDR is the billing record for a finished session. Create-only: the
// protocol forbids updating a CDR once pushed.
type CDR struct {
	CountryCode string    `json:"country_code"`
	PartyID     string    `json:"party_id"`
	ID          string    `json:"id"`
	StartDate   time.Time `json:"start_date_time"`
	EndDate     time.Time `json:"end_date_time"`
	SessionID   *string   `json:"session_id,omitempty"`
	CdrToken    CdrToken  `json:"cdr_token"`
	AuthMethod  string    `json:"auth_method"`
	Currency    string    `json:"currency"`
	TotalCost   Price     `json:"total_cost"`
	TotalEnergy float64   `json:"total_energy"`
	LastUpdated time.Time `json:"last_updated"`
}

func (c CDR) SyncKey() SyncKey {
	return SyncKey{Party: PartyRef{c.CountryCode, c.PartyID}, Kind: KindCDR, ID: c.ID}
}
func (c CDR) Version() time.Time { return c.LastUpdated }
func (c CDR) Stamp(t time.Time) Syncable {
	c.LastUpdated = t
	return c
}

type Token struct {
	CountryCode  string    `json:"country_code"`
	PartyID      string    `json:"party_id"`
	UID          string    `json:"uid"`
	Type         string    `json:"type"`
	ContractID   string    `json:"contract_id"`
	VisualNumber *string   `json:"visual_number,omitempty"`
	Issuer       string    `json:"issuer"`
	Valid        bool      `json:"valid"`
	Whitelist    string    `json:"whitelist"`
	Language     *string   `json:"language,omitempty"`
	Status       string    `json:"status,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

func (t Token) SyncKey() SyncKey {
	return SyncKey{Party: PartyRef{t.CountryCode, t.PartyID}, Kind: KindToken, ID: t.UID}
}
func (t Token) Version() time.Time { return t.LastUpdated }
func (t Token) Stamp(ts time.Time) Syncable {
	t.LastUpdated = ts
	return t
}

// PageFilter carries the already-parsed pagination/date-range query of a
// collection listing.
type PageFilter struct {
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}
