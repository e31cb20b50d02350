package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runnable/controlplane/internal/model"
)

func TestHostIPFromPorts(t *testing.T) {
	tests := []struct {
		name  string
		ports map[string][]model.PortBinding
		want  string
	}{
		{
			name: "picks bound host ip",
			ports: map[string][]model.PortBinding{
				"80/tcp": {{HostIP: "10.0.0.5", HostPort: "32768"}},
			},
			want: "10.0.0.5",
		},
		{
			name: "skips wildcard and empty bindings",
			ports: map[string][]model.PortBinding{
				"80/tcp":   {{HostIP: "0.0.0.0", HostPort: "32768"}},
				"8080/tcp": {{HostIP: "", HostPort: ""}, {HostIP: "10.0.0.7", HostPort: "32769"}},
			},
			want: "10.0.0.7",
		},
		{
			name: "deterministic across map ordering",
			ports: map[string][]model.PortBinding{
				"9000/tcp": {{HostIP: "10.0.0.9", HostPort: "32770"}},
				"80/tcp":   {{HostIP: "10.0.0.1", HostPort: "32771"}},
			},
			want: "10.0.0.1",
		},
		{
			name: "nothing usable",
			ports: map[string][]model.PortBinding{
				"80/tcp": {{HostIP: "0.0.0.0", HostPort: "32768"}},
			},
			want: "",
		},
		{
			name: "empty map",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hostIPFromPorts(tt.ports))
		})
	}
}
