// Package authz computes allow/deny decisions for tokens presented at a
// charging location. A denial is a normal, successful response carrying an
// explanation, never an error.
package authz

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ocpihub/internal/metrics"
	"ocpihub/internal/models"
	"ocpihub/internal/store"
)

// Request is one authorization query. From is the requesting (CPO) party
// whose locations are consulted; To is the target (token-owning) party.
// AuthRef, when supplied upstream, is reused instead of minting a new one.
type Request struct {
	TokenUID string
	From     models.PartyRef
	To       models.PartyRef
	Location *models.LocationReference
	AuthRef  string
}

type Resolver struct {
	store  *store.Store
	log    zerolog.Logger
	coll   *metrics.Collector
	newRef func() string
}

func NewResolver(st *store.Store, log zerolog.Logger, coll *metrics.Collector) *Resolver {
	return &Resolver{store: st, log: log, coll: coll, newRef: uuid.NewString}
}

// Authorize resolves the token and, when given, the location reference, and
// maps the token's own state to a decision. Every decision carries an
// authorization reference for correlating a later charging session.
func (r *Resolver) Authorize(req Request) models.AuthorizationInfo {
	ref := req.AuthRef
	if ref == "" {
		ref = r.newRef()
	}

	token, _, err := r.store.TryGetToken(req.To, req.TokenUID)
	if err != nil {
		return r.decided(models.AuthorizationInfo{
			Allowed: models.AllowedNotAllowed,
			Info:    text("en", fmt.Sprintf("Token %s is not known", req.TokenUID)),
			AuthRef: ref,
		})
	}
	lang := "en"
	if token.Language != nil && *token.Language != "" {
		lang = *token.Language
	}

	loc := req.Location
	if loc != nil {
		if _, _, err := r.store.GetLocation(req.From, loc.LocationID); err != nil {
			return r.decided(models.AuthorizationInfo{
				Allowed:  models.AllowedNotAllowed,
				Token:    &token,
				Location: loc,
				Info:     text(lang, fmt.Sprintf("Location %s is not known", loc.LocationID)),
				AuthRef:  ref,
			})
		}
		if len(loc.EvseUIDs) > 0 {
			var missing, present []string
			for _, uid := range loc.EvseUIDs {
				if _, _, err := r.store.GetEVSE(req.From, loc.LocationID, uid); err != nil {
					missing = append(missing, uid)
				} else {
					present = append(present, uid)
				}
			}
			if len(present) == 0 {
				msg := fmt.Sprintf("EVSE %s is not known at location %s", missing[0], loc.LocationID)
				if len(missing) > 1 {
					msg = fmt.Sprintf("EVSEs %s are not known at location %s", strings.Join(missing, ", "), loc.LocationID)
				}
				return r.decided(models.AuthorizationInfo{
					Allowed:  models.AllowedNotAllowed,
					Token:    &token,
					Location: loc,
					Info:     text(lang, msg),
					AuthRef:  ref,
				})
			}
			loc = &models.LocationReference{LocationID: loc.LocationID, EvseUIDs: present}
		}
	}

	allowed, msg := tokenDecision(token)
	return r.decided(models.AuthorizationInfo{
		Allowed:  allowed,
		Token:    &token,
		Location: loc,
		Info:     text(lang, msg),
		AuthRef:  ref,
	})
}

func (r *Resolver) decided(info models.AuthorizationInfo) models.AuthorizationInfo {
	r.coll.AuthorizeDecision(string(info.Allowed))
	r.log.Info().
		Str("allowed", string(info.Allowed)).
		Str("authorization_reference", info.AuthRef).
		Msg("authorization decided")
	return info
}

func tokenDecision(t models.Token) (models.AllowedType, string) {
	if !t.Valid {
		return models.AllowedNotAllowed, "Token not valid"
	}
	switch t.Status {
	case "", string(models.AllowedAccepted):
		return models.AllowedAccepted, "Token accepted"
	case string(models.AllowedBlocked):
		return models.AllowedBlocked, "Token blocked"
	case string(models.AllowedExpired):
		return models.AllowedExpired, "Token expired"
	case string(models.AllowedNoCredit):
		return models.AllowedNoCredit, "Insufficient credit"
	default:
		return models.AllowedNotAllowed, "Token not allowed"
	}
}

// translations for the fixed decision messages; English is the fallback for
// any language without an entry.
var translations = map[string]map[string]string{
	"nl": {
		"Token accepted":      "Token geaccepteerd",
		"Token blocked":       "Token geblokkeerd",
		"Token expired":       "Token verlopen",
		"Insufficient credit": "Onvoldoende saldo",
		"Token not valid":     "Token niet geldig",
	},
}

func text(lang, msg string) *models.DisplayText {
	if m, ok := translations[lang]; ok {
		if tr, ok := m[msg]; ok {
			return &models.DisplayText{Language: lang, Text: tr}
		}
	}
	return &models.DisplayText{Language: "en", Text: msg}
}
