package aws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opsfab/opsfab/types"
)

// MockClient for testing
type MockClient struct {
	instances   []types.Instance
	tagCalls    []TagCall
	waitedIDs   []string
	groups      map[string]string
	created     []string
	ingressIDs  []string
	importNames []string
	nextID      int
}

type TagCall struct {
	IDs  []string
	Tags map[string]string
}

func (m *MockClient) DescribeInstances(ctx context.Context, filter types.InstanceFilter) ([]types.Instance, error) {
	var result []types.Instance
	for _, instance := range m.instances {
		if instance.Matches(filter) {
			result = append(result, instance)
		}
	}
	return result, nil
}

func (m *MockClient) RunInstances(ctx context.Context, spec types.InstanceSpec) ([]types.Instance, error) {
	count := spec.Count
	if count < 1 {
		count = 1
	}

	var launched []types.Instance
	for i := 0; i < count; i++ {
		m.nextID++
		instance := types.Instance{
			ID:         fmt.Sprintf("i-new%04d", m.nextID),
			Type:       spec.InstanceType,
			State:      types.StatePending,
			LaunchTime: time.Now(),
			Tags:       spec.Tags,
		}
		m.instances = append(m.instances, instance)
		launched = append(launched, instance)
	}
	return launched, nil
}

func (m *MockClient) TerminateInstances(ctx context.Context, ids []string) ([]string, error) {
	var terminating []string
	for i, instance := range m.instances {
		for _, id := range ids {
			if instance.ID == id {
				m.instances[i].State = types.StateShuttingDown
				terminating = append(terminating, id)
			}
		}
	}
	return terminating, nil
}

func (m *MockClient) CreateTags(ctx context.Context, ids []string, tags map[string]string) error {
	m.tagCalls = append(m.tagCalls, TagCall{IDs: ids, Tags: tags})
	return nil
}

func (m *MockClient) WaitRunning(ctx context.Context, ids []string) error {
	m.waitedIDs = append(m.waitedIDs, ids...)
	for i, instance := range m.instances {
		for _, id := range ids {
			if instance.ID == id {
				m.instances[i].State = types.StateRunning
				m.instances[i].PublicDNS = instance.ID + ".compute.example.com"
			}
		}
	}
	return nil
}

func (m *MockClient) DescribeSecurityGroup(ctx context.Context, name string) (string, error) {
	if id, ok := m.groups[name]; ok {
		return id, nil
	}
	return "", ErrNotFound
}

func (m *MockClient) CreateSecurityGroup(ctx context.Context, name, description string) (string, error) {
	if m.groups == nil {
		m.groups = make(map[string]string)
	}
	id := fmt.Sprintf("sg-%04d", len(m.groups)+1)
	m.groups[name] = id
	m.created = append(m.created, name)
	return id, nil
}

func (m *MockClient) AuthorizeIngress(ctx context.Context, groupID string, ports []int32) error {
	m.ingressIDs = append(m.ingressIDs, groupID)
	return nil
}

func (m *MockClient) ImportKeyPair(ctx context.Context, name string, publicKey []byte) error {
	m.importNames = append(m.importNames, name)
	return nil
}

func testInstances() []types.Instance {
	now := time.Now()
	return []types.Instance{
		{
			ID:         "i-old",
			State:      types.StateRunning,
			PublicDNS:  "old.compute.example.com",
			LaunchTime: now.Add(-3 * time.Hour),
			Tags:       map[string]string{"Name": "web"},
		},
		{
			ID:         "i-new",
			State:      types.StateRunning,
			PublicDNS:  "new.compute.example.com",
			LaunchTime: now.Add(-time.Hour),
			Tags:       map[string]string{"Name": "web"},
		},
		{
			ID:         "i-dead",
			State:      types.StateTerminated,
			LaunchTime: now,
			Tags:       map[string]string{"Name": "web"},
		},
	}
}

func TestProvider_LiveInstances(t *testing.T) {
	p := NewProvider(&MockClient{instances: testInstances()}, "us-east-1")

	live, err := p.LiveInstances(context.Background(), types.InstanceFilter{})
	if err != nil {
		t.Fatalf("LiveInstances() error = %v", err)
	}
	if len(live) != 2 {
		t.Errorf("live count = %d, want 2", len(live))
	}
}

func TestProvider_LatestHost(t *testing.T) {
	p := NewProvider(&MockClient{instances: testInstances()}, "us-east-1")

	host, err := p.LatestHost(context.Background(), types.InstanceFilter{})
	if err != nil {
		t.Fatalf("LatestHost() error = %v", err)
	}
	if host != "new.compute.example.com" {
		t.Errorf("LatestHost() = %q", host)
	}
}

func TestProvider_LatestHost_NoInstances(t *testing.T) {
	p := NewProvider(&MockClient{}, "us-east-1")

	if _, err := p.LatestHost(context.Background(), types.InstanceFilter{}); err == nil {
		t.Error("LatestHost() should fail with no instances")
	}
}

func TestProvider_NamedInstance(t *testing.T) {
	instances := testInstances()
	instances[1].Tags = map[string]string{"Name": "db"}
	p := NewProvider(&MockClient{instances: instances}, "us-east-1")

	instance, err := p.NamedInstance(context.Background(), "db")
	if err != nil {
		t.Fatalf("NamedInstance() error = %v", err)
	}
	if instance.ID != "i-new" {
		t.Errorf("NamedInstance() = %s", instance.ID)
	}
}

func TestProvider_NamedInstance_Ambiguous(t *testing.T) {
	p := NewProvider(&MockClient{instances: testInstances()}, "us-east-1")

	if _, err := p.NamedInstance(context.Background(), "web"); err == nil {
		t.Error("NamedInstance() should fail with two live matches")
	}
}

func TestProvider_Provision(t *testing.T) {
	mock := &MockClient{}
	p := NewProvider(mock, "us-east-1")

	spec := types.InstanceSpec{
		ImageID:      "ami-123456",
		InstanceType: "t3.micro",
		Count:        2,
		Tags:         map[string]string{"Name": "web"},
	}

	instances, err := p.Provision(context.Background(), spec)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}
	if len(instances) != 2 {
		t.Fatalf("provisioned = %d, want 2", len(instances))
	}
	if len(mock.waitedIDs) != 2 {
		t.Errorf("waited on %d ids, want 2", len(mock.waitedIDs))
	}
	for _, instance := range instances {
		if instance.State != types.StateRunning {
			t.Errorf("instance %s state = %s", instance.ID, instance.State)
		}
		if instance.PublicDNS == "" {
			t.Errorf("instance %s has no public DNS after provision", instance.ID)
		}
	}
}

func TestProvider_Terminate(t *testing.T) {
	mock := &MockClient{instances: testInstances()}
	p := NewProvider(mock, "us-east-1")

	if err := p.Terminate(context.Background(), []string{"i-old", "i-new"}); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
}

func TestProvider_Terminate_Unconfirmed(t *testing.T) {
	mock := &MockClient{instances: testInstances()}
	p := NewProvider(mock, "us-east-1")

	err := p.Terminate(context.Background(), []string{"i-old", "i-missing"})
	if err == nil {
		t.Fatal("Terminate() should fail when an id isn't confirmed")
	}
}

func TestProvider_EnsureSecurityGroup(t *testing.T) {
	mock := &MockClient{}
	p := NewProvider(mock, "us-east-1")
	ctx := context.Background()

	id, err := p.EnsureSecurityGroup(ctx, SecurityGroupSpec{Name: "web"})
	if err != nil {
		t.Fatalf("EnsureSecurityGroup() error = %v", err)
	}
	if id == "" {
		t.Error("EnsureSecurityGroup() returned empty id")
	}
	if len(mock.ingressIDs) != 1 {
		t.Errorf("ingress calls = %d, want 1", len(mock.ingressIDs))
	}

	// second call finds the existing group and leaves it alone
	again, err := p.EnsureSecurityGroup(ctx, SecurityGroupSpec{Name: "web"})
	if err != nil {
		t.Fatalf("EnsureSecurityGroup() second call error = %v", err)
	}
	if again != id {
		t.Errorf("second call id = %s, want %s", again, id)
	}
	if len(mock.created) != 1 {
		t.Errorf("groups created = %d, want 1", len(mock.created))
	}
}
