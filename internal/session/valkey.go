package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// keyPrefix namespaces session keys in a shared Valkey instance.
const keyPrefix = "soilmap:session:"

// ValkeyStore keeps sessions in Valkey as JSON values with a TTL that is
// refreshed on every save.
type ValkeyStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewValkeyStore connects to the Valkey server at addr.
func NewValkeyStore(addr string, ttl time.Duration) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &ValkeyStore{client: client, ttl: ttl}, nil
}

func key(id string) string {
	return keyPrefix + id
}

// Get loads a session. Missing or expired keys are ErrNotFound.
func (v *ValkeyStore) Get(ctx context.Context, id string) (*State, error) {
	cmd := v.client.Do(ctx, v.client.B().Get().Key(key(id)).Build())
	if err := cmd.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	b, err := cmd.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("valkey get: %w", err)
	}
	return decodeState(b)
}

// Save writes a session and resets its TTL.
func (v *ValkeyStore) Save(ctx context.Context, s *State) error {
	b, err := encodeState(s)
	if err != nil {
		return err
	}
	cmd := v.client.Do(ctx,
		v.client.B().Set().Key(key(s.ID)).Value(string(b)).Ex(v.ttl).Build(),
	)
	if err := cmd.Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

// Delete removes a session.
func (v *ValkeyStore) Delete(ctx context.Context, id string) error {
	cmd := v.client.Do(ctx, v.client.B().Del().Key(key(id)).Build())
	if err := cmd.Error(); err != nil {
		return fmt.Errorf("valkey del: %w", err)
	}
	return nil
}

// Ping checks the connection for health reporting.
func (v *ValkeyStore) Ping(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (v *ValkeyStore) Close() {
	v.client.Close()
}

func encodeState(s *State) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return b, nil
}

func decodeState(b []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
