package tablestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

// table holds the request plumbing shared by every repository of one resource.
type table[T any] struct {
	client   *Client
	resource string
	idField  string
	log      zerolog.Logger
}

func newTable[T any](client *Client, resource, idField string, log zerolog.Logger) table[T] {
	return table[T]{
		client:   client,
		resource: resource,
		idField:  idField,
		log:      log.With().Str("resource", resource).Logger(),
	}
}

func (t table[T]) list(ctx context.Context, q *Query) ([]T, error) {
	body, err := t.client.Get(ctx, t.resource, q)
	if err != nil {
		return nil, err
	}
	return decodeList[T](t.resource, body)
}

func (t table[T]) first(ctx context.Context, q *Query) (*T, error) {
	body, err := t.client.Get(ctx, t.resource, q.Limit(1))
	if err != nil {
		return nil, err
	}
	return decodeFirst[T](t.resource, body)
}

func (t table[T]) byID(ctx context.Context, id int) (*T, error) {
	return t.first(ctx, NewQuery().Select("*").EqInt(t.idField, id))
}

// insert posts v without its identifier and returns the assigned id.
func (t table[T]) insert(ctx context.Context, v *T, omit ...string) (int, error) {
	payload, err := encodeOmitting(v, append([]string{t.idField}, omit...)...)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", t.resource, err)
	}
	body, err := t.client.Post(ctx, t.resource, payload)
	if err != nil {
		return 0, err
	}
	id, err := recoverID(t.resource, body, t.idField)
	if err != nil {
		// The store accepted the write, so a row may exist without us knowing its id.
		t.log.Error().Err(err).Msg("insert accepted but identifier not recovered; possible orphan row")
		return 0, err
	}
	return id, nil
}

func (t table[T]) update(ctx context.Context, id int, v any) error {
	if id <= 0 {
		return fmt.Errorf("update %s: %w", t.resource, domain.ErrMissingID)
	}
	payload, err := encodeOmitting(v, t.idField)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.resource, err)
	}
	return t.patch(ctx, id, payload)
}

// patch writes payload to the row with the given id. With a representation
// requested, "[]" means no row matched; an empty body is accepted as success.
func (t table[T]) patch(ctx context.Context, id int, payload []byte) error {
	body, err := t.client.Patch(ctx, t.resource, NewQuery().EqInt(t.idField, id), payload)
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) == "[]" {
		return fmt.Errorf("update %s %d: %w", t.resource, id, domain.ErrNotFound)
	}
	return nil
}

func (t table[T]) delete(ctx context.Context, id int) error {
	if id <= 0 {
		return fmt.Errorf("delete from %s: %w", t.resource, domain.ErrMissingID)
	}
	_, err := t.client.Delete(ctx, t.resource, NewQuery().EqInt(t.idField, id))
	return err
}
