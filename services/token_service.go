package services

import (
	"errors"
	"fmt"
	"time"

	"event-ticketing/internal/status"
	"event-ticketing/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// TokenService mints and validates booking tokens. A token is an HS256 JWT
// carrying (user_id, event_id, issued_at) and is honored only while its
// backing booking_tokens row exists: minting replaces the previous row for
// the pair, a successful booking consumes it, the sweeper removes it after
// expiry. That keeps tokens single-use without a revocation list.
type TokenService struct {
	app    core.App
	secret string
	ttl    time.Duration
}

func NewTokenService(app core.App, secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		app:    app,
		secret: secret,
		ttl:    ttl,
	}
}

// TTL returns the validity window tokens are minted with.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Mint issues a fresh token for the pair and stores it, replacing any
// previous token for the same user and event.
func (s *TokenService) Mint(userID, eventID string) (string, error) {
	signed, issuedAt, err := signBookingToken(s.secret, userID, eventID, s.ttl)
	if err != nil {
		return "", fmt.Errorf("sign booking token: %w", err)
	}

	err = s.app.RunInTransaction(func(txApp core.App) error {
		if existing, err := txApp.FindFirstRecordByFilter(
			"booking_tokens",
			"user = {:user} && event = {:event}",
			dbx.Params{"user": userID, "event": eventID},
		); err == nil {
			if err := txApp.Delete(existing); err != nil {
				return err
			}
		}

		collection, err := txApp.FindCollectionByNameOrId("booking_tokens")
		if err != nil {
			return err
		}

		record := core.NewRecord(collection)
		record.Set("user", userID)
		record.Set("event", eventID)
		record.Set("token", signed)
		record.Set("issued_at", issuedAt.UTC().Format(types.DefaultDateLayout))
		return txApp.Save(record)
	})
	if err != nil {
		return "", fmt.Errorf("store booking token: %w", err)
	}

	return signed, nil
}

// Validate checks the presented token's signature, scope and expiry, and
// that it is still the live token for the pair.
func (s *TokenService) Validate(tokenString, userID, eventID string) error {
	if err := verifyBookingToken(s.secret, tokenString, userID, eventID); err != nil {
		return err
	}

	record, err := s.app.FindFirstRecordByFilter(
		"booking_tokens",
		"user = {:user} && event = {:event}",
		dbx.Params{"user": userID, "event": eventID},
	)
	if err != nil {
		// No backing row: consumed, swept, or never minted.
		return status.ErrTokenInvalid
	}
	if record.GetString("token") != tokenString {
		// A newer token replaced this one.
		return status.ErrTokenInvalid
	}

	issued := record.GetDateTime("issued_at").Time()
	if time.Since(issued) >= s.ttl {
		return status.ErrTokenExpired
	}

	return nil
}

// Live reports whether the user currently holds a valid stored token for
// the event.
func (s *TokenService) Live(userID, eventID string) bool {
	record, err := s.app.FindFirstRecordByFilter(
		"booking_tokens",
		"user = {:user} && event = {:event}",
		dbx.Params{"user": userID, "event": eventID},
	)
	if err != nil {
		return false
	}

	token := models.BookingToken{
		IssuedAt: record.GetDateTime("issued_at").Time(),
	}
	return token.Valid(s.ttl)
}

// Token returns the stored token string for the pair, if a live one exists.
func (s *TokenService) Token(userID, eventID string) (string, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"booking_tokens",
		"user = {:user} && event = {:event}",
		dbx.Params{"user": userID, "event": eventID},
	)
	if err != nil {
		return "", status.ErrTokenInvalid
	}

	issued := record.GetDateTime("issued_at").Time()
	if time.Since(issued) >= s.ttl {
		return "", status.ErrTokenExpired
	}

	return record.GetString("token"), nil
}

// ConsumeTx deletes the pair's token row inside the caller's booking
// transaction. The affected-row check makes consumption single shot: of
// two bookings racing on the same token, the second deletes zero rows and
// rolls back.
func (s *TokenService) ConsumeTx(txApp core.App, userID, eventID string) error {
	result, err := txApp.DB().NewQuery(
		"DELETE FROM booking_tokens WHERE user = {:user} AND event = {:event}",
	).Bind(dbx.Params{"user": userID, "event": eventID}).Execute()
	if err != nil {
		return fmt.Errorf("consume booking token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume booking token: %w", err)
	}
	if affected == 0 {
		return status.ErrTokenInvalid
	}
	return nil
}

// PurgeExpired removes every token older than the validity window.
func (s *TokenService) PurgeExpired() (int64, error) {
	cutoff, err := types.ParseDateTime(time.Now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}

	result, err := s.app.DB().NewQuery(
		"DELETE FROM booking_tokens WHERE issued_at < {:cutoff}",
	).Bind(dbx.Params{"cutoff": cutoff.String()}).Execute()
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// signBookingToken builds the signed JWT. Kept free of storage so the
// token format is testable on its own.
func signBookingToken(secret, userID, eventID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"event_id": eventID,
		"iat":      jwt.NewNumericDate(now),
		"exp":      jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, now, nil
}

// verifyBookingToken checks signature, expiry and (user, event) scope.
func verifyBookingToken(secret, tokenString, userID, eventID string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return status.ErrTokenExpired
		}
		return status.ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return status.ErrTokenInvalid
	}
	if claims["user_id"] != userID || claims["event_id"] != eventID {
		return status.ErrTokenInvalid
	}

	return nil
}
