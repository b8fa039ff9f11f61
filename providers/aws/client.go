// Package aws provides EC2 provisioning and Route53 DNS for opsfab.
package aws

import (
	"context"
	"errors"

	"github.com/opsfab/opsfab/types"
)

// ErrNotFound means the requested AWS resource doesn't exist
var ErrNotFound = errors.New("not found")

// Client is the EC2 surface opsfab needs
type Client interface {
	DescribeInstances(ctx context.Context, filter types.InstanceFilter) ([]types.Instance, error)
	RunInstances(ctx context.Context, spec types.InstanceSpec) ([]types.Instance, error)
	// TerminateInstances returns the ids AWS reports as shutting down.
	TerminateInstances(ctx context.Context, ids []string) ([]string, error)
	CreateTags(ctx context.Context, ids []string, tags map[string]string) error
	WaitRunning(ctx context.Context, ids []string) error

	// DescribeSecurityGroup returns ErrNotFound for a missing group.
	DescribeSecurityGroup(ctx context.Context, name string) (string, error)
	CreateSecurityGroup(ctx context.Context, name, description string) (string, error)
	AuthorizeIngress(ctx context.Context, groupID string, ports []int32) error

	ImportKeyPair(ctx context.Context, name string, publicKey []byte) error
}

// SecurityGroupSpec describes a group EnsureSecurityGroup converges on
type SecurityGroupSpec struct {
	Name        string
	Description string
	// Ports are TCP ports opened to the world. Defaults to 22 and 80.
	Ports []int32
}
