package server

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/shalu066900/pykms/internal/identity"
	"github.com/shalu066900/pykms/internal/store"
)

// Snapshot is a point-in-time read of the host's own identity and
// activation ledger, for the "web monitoring UI" collaborator spec.md
// §1 treats as external, and for the status CLI subcommand.
type Snapshot struct {
	HWID           string
	ConfiguredEpid string
	ReportedCount  uint32
	MaxClients     uint32
	Clients        []store.ClientRecord
}

// BuildSnapshot reads the current ServerIdentity state and the full
// client ledger from st.
func BuildSnapshot(ctx context.Context, ident *identity.ServerIdentity, st store.ClientStore) (Snapshot, error) {
	clients, err := st.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("server: list client records: %w", err)
	}
	return Snapshot{
		HWID:           hex.EncodeToString(ident.HWID[:]),
		ConfiguredEpid: ident.FixedEpid,
		ReportedCount:  ident.CurrentClientCount(),
		MaxClients:     ident.MaxClients(),
		Clients:        clients,
	}, nil
}
