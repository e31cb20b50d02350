package activity

import (
	"context"
	"fmt"

	"github.com/runnable/controlplane/internal/platform"
)

// Hosts contains activities for the host/network directory: the table the
// edge routers resolve instance hostnames from. A hostname must be resolvable
// before any client is told its instance is running.
type Hosts struct {
	db                DB
	userContentDomain string
}

func NewHosts(db DB, userContentDomain string) *Hosts {
	return &Hosts{db: db, userContentDomain: userContentDomain}
}

// UpsertInstanceHostnameParams holds the parameters for UpsertInstanceHostname.
type UpsertInstanceHostnameParams struct {
	InstanceID    string `json:"instance_id"`
	ShortHash     string `json:"short_hash"`
	Name          string `json:"name"`
	OwnerUsername string `json:"owner_username"`
	ContainerID   string `json:"container_id"`
	HostIP        string `json:"host_ip"`
}

// UpsertInstanceHostname records (or replaces) the routable entry for an
// instance hostname. Re-delivery of the same network-attached event upserts
// the same row, so the operation is idempotent.
func (a *Hosts) UpsertInstanceHostname(ctx context.Context, params UpsertInstanceHostnameParams) (string, error) {
	hostname := platform.ContainerHostname(params.ShortHash, params.Name, params.OwnerUsername, a.userContentDomain)
	_, err := a.db.Exec(ctx,
		`INSERT INTO container_hosts (hostname, instance_id, container_id, host_ip, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (hostname)
		 DO UPDATE SET instance_id = $2, container_id = $3, host_ip = $4, updated_at = now()`,
		hostname, params.InstanceID, params.ContainerID, params.HostIP,
	)
	if err != nil {
		return "", fmt.Errorf("upsert instance hostname: %w", err)
	}
	return hostname, nil
}

// RemoveContainerHosts deletes every hostname entry for an instance on
// teardown. Removing zero rows is fine.
func (a *Hosts) RemoveContainerHosts(ctx context.Context, instanceID string) error {
	_, err := a.db.Exec(ctx, `DELETE FROM container_hosts WHERE instance_id = $1`, instanceID)
	if err != nil {
		return fmt.Errorf("remove container hosts: %w", err)
	}
	return nil
}
