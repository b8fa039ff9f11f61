package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/opsfab/opsfab/types"
)

// Provider offers the EC2 operations deployments are built from
type Provider struct {
	client Client
	region string
}

// NewProvider wraps a Client
func NewProvider(client Client, region string) *Provider {
	return &Provider{client: client, region: region}
}

// Region returns the provider's region
func (p *Provider) Region() string {
	return p.region
}

// Instances lists instances matching filter
func (p *Provider) Instances(ctx context.Context, filter types.InstanceFilter) ([]types.Instance, error) {
	return p.client.DescribeInstances(ctx, filter)
}

// LiveInstances lists matching instances that aren't terminated or
// shutting down
func (p *Provider) LiveInstances(ctx context.Context, filter types.InstanceFilter) ([]types.Instance, error) {
	instances, err := p.client.DescribeInstances(ctx, filter)
	if err != nil {
		return nil, err
	}
	return types.FilterLive(instances), nil
}

// LatestInstance returns the most recently launched live instance
func (p *Provider) LatestInstance(ctx context.Context, filter types.InstanceFilter) (*types.Instance, error) {
	instances, err := p.client.DescribeInstances(ctx, filter)
	if err != nil {
		return nil, err
	}

	latest := types.Latest(instances)
	if latest == nil {
		return nil, fmt.Errorf("no live instances match")
	}
	return latest, nil
}

// LatestHost returns the public DNS name of the latest live instance
func (p *Provider) LatestHost(ctx context.Context, filter types.InstanceFilter) (string, error) {
	latest, err := p.LatestInstance(ctx, filter)
	if err != nil {
		return "", err
	}
	if latest.PublicDNS == "" {
		return "", fmt.Errorf("instance %s has no public DNS name", latest.ID)
	}
	return latest.PublicDNS, nil
}

// LiveHosts returns the public DNS names of live matching instances
func (p *Provider) LiveHosts(ctx context.Context, filter types.InstanceFilter) ([]string, error) {
	instances, err := p.LiveInstances(ctx, filter)
	if err != nil {
		return nil, err
	}
	return types.Hosts(instances), nil
}

// NamedInstance returns the single live instance carrying the Name tag.
// More than one match is an error, names are expected to be unique.
func (p *Provider) NamedInstance(ctx context.Context, name string) (*types.Instance, error) {
	instances, err := p.LiveInstances(ctx, types.InstanceFilter{
		Tags: map[string]string{"Name": name},
	})
	if err != nil {
		return nil, err
	}

	switch len(instances) {
	case 0:
		return nil, fmt.Errorf("no live instance named %s", name)
	case 1:
		return &instances[0], nil
	default:
		return nil, fmt.Errorf("%d live instances named %s, expected one", len(instances), name)
	}
}

// Provision launches instances per spec, waits for them to run, and
// returns them re-described so addresses are populated
func (p *Provider) Provision(ctx context.Context, spec types.InstanceSpec) ([]types.Instance, error) {
	launched, err := p.client.RunInstances(ctx, spec)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(launched))
	for _, instance := range launched {
		ids = append(ids, instance.ID)
	}

	if err := p.client.WaitRunning(ctx, ids); err != nil {
		return nil, err
	}

	return p.client.DescribeInstances(ctx, types.InstanceFilter{IDs: ids})
}

// Terminate terminates ids, failing unless AWS confirms every one is
// going away
func (p *Provider) Terminate(ctx context.Context, ids []string) error {
	terminating, err := p.client.TerminateInstances(ctx, ids)
	if err != nil {
		return err
	}

	confirmed := make(map[string]bool, len(terminating))
	for _, id := range terminating {
		confirmed[id] = true
	}

	var missed []string
	for _, id := range ids {
		if !confirmed[id] {
			missed = append(missed, id)
		}
	}
	if len(missed) > 0 {
		return fmt.Errorf("instances not confirmed terminating: %s", strings.Join(missed, ", "))
	}
	return nil
}

// Tag applies tags to instances
func (p *Provider) Tag(ctx context.Context, ids []string, tags map[string]string) error {
	return p.client.CreateTags(ctx, ids, tags)
}

// EnsureSecurityGroup creates the group if missing and opens its ports,
// returning the group id. Existing groups are left as they are.
func (p *Provider) EnsureSecurityGroup(ctx context.Context, spec SecurityGroupSpec) (string, error) {
	id, err := p.client.DescribeSecurityGroup(ctx, spec.Name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	description := spec.Description
	if description == "" {
		description = "managed by opsfab"
	}

	id, err = p.client.CreateSecurityGroup(ctx, spec.Name, description)
	if err != nil {
		return "", err
	}

	ports := spec.Ports
	if len(ports) == 0 {
		ports = []int32{22, 80}
	}
	if err := p.client.AuthorizeIngress(ctx, id, ports); err != nil {
		return "", err
	}
	return id, nil
}

// ImportKeyPair uploads a local public key file under name
func (p *Provider) ImportKeyPair(ctx context.Context, name, publicKeyPath string) error {
	publicKey, err := os.ReadFile(publicKeyPath) // #nosec G304 -- caller chooses the key
	if err != nil {
		return fmt.Errorf("failed to read public key %s: %w", publicKeyPath, err)
	}
	return p.client.ImportKeyPair(ctx, name, publicKey)
}
