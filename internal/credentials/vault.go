// Package credentials persists the remembered sync credentials, sealing the token at rest
// when a local passphrase is configured.
package credentials

import (
	"context"

	"go.uber.org/zap"

	cc "github.com/and161185/logistics-keeper/internal/crypto/clientcrypto"
	"github.com/and161185/logistics-keeper/internal/model"
	"github.com/and161185/logistics-keeper/internal/store"
)

const purpose = "sync-token"

// Vault reads and writes model.SyncCredentials under store.KeySyncCredentials.
type Vault struct {
	st  *store.Store
	key []byte // nil: tokens stored as given
	log *zap.Logger
}

// NewVault builds a vault. With a non-empty passphrase the token is sealed; the
// derivation salt is created on first use and kept in the store.
func NewVault(ctx context.Context, st *store.Store, passphrase string, log *zap.Logger) (*Vault, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := &Vault{st: st, log: log.Named("credentials")}
	if passphrase == "" {
		return v, nil
	}

	salt := store.Get[[]byte](ctx, st, store.KeyCredentialSalt, nil)
	if len(salt) != cc.SaltLen {
		var err error
		if salt, err = cc.Rand(cc.SaltLen); err != nil {
			return nil, err
		}
		if err := store.Set(ctx, st, store.KeyCredentialSalt, salt); err != nil {
			return nil, err
		}
	}
	key, err := cc.DerivePurposeKey(cc.DeriveMaster([]byte(passphrase), salt), purpose)
	if err != nil {
		return nil, err
	}
	v.key = key
	return v, nil
}

// Load returns the remembered credentials. Values that cannot be unsealed are treated
// as absent, which disables automatic sync.
func (v *Vault) Load(ctx context.Context) model.SyncCredentials {
	c := store.Get(ctx, v.st, store.KeySyncCredentials, model.SyncCredentials{})
	if !cc.IsSealed(c.Token) {
		return c
	}
	if v.key == nil {
		v.log.Warn("sync token is sealed but no passphrase configured", zap.Error(cc.ErrSealed))
		return model.SyncCredentials{}
	}
	pt, err := cc.Open(v.key, c.Token, []byte(c.DocumentID))
	if err != nil {
		v.log.Warn("sync token cannot be unsealed", zap.Error(err))
		return model.SyncCredentials{}
	}
	c.Token = string(pt)
	return c
}

// Save remembers c, sealing the token when the vault has a key.
func (v *Vault) Save(ctx context.Context, c model.SyncCredentials) error {
	if v.key != nil && c.Token != "" {
		sealed, err := cc.Seal(v.key, []byte(c.Token), []byte(c.DocumentID))
		if err != nil {
			return err
		}
		c.Token = sealed
	}
	return store.Set(ctx, v.st, store.KeySyncCredentials, c)
}

// Clear forgets the remembered credentials.
func (v *Vault) Clear(ctx context.Context) error {
	return store.Set(ctx, v.st, store.KeySyncCredentials, model.SyncCredentials{})
}
