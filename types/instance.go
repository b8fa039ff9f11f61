package types

import (
	"sort"
	"time"
)

// Instance states that count as gone for deployment purposes.
const (
	StateTerminated   = "terminated"
	StateShuttingDown = "shutting-down"
	StateRunning      = "running"
	StatePending      = "pending"
	StateStopped      = "stopped"
)

// Instance represents an EC2 instance as opsfab sees it
type Instance struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	State      string            `json:"state"`
	Region     string            `json:"region"`
	AZ         string            `json:"az,omitempty"`
	PublicDNS  string            `json:"public_dns,omitempty"`
	PublicIP   string            `json:"public_ip,omitempty"`
	PrivateIP  string            `json:"private_ip,omitempty"`
	KeyName    string            `json:"key_name,omitempty"`
	LaunchTime time.Time         `json:"launch_time"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// InstanceSpec defines a desired instance to launch
type InstanceSpec struct {
	ImageID        string            `yaml:"image_id" json:"image_id"`
	InstanceType   string            `yaml:"instance_type" json:"instance_type"`
	KeyName        string            `yaml:"key_name,omitempty" json:"key_name,omitempty"`
	SecurityGroups []string          `yaml:"security_groups,omitempty" json:"security_groups,omitempty"`
	Count          int               `yaml:"count,omitempty" json:"count,omitempty"`
	UserData       string            `yaml:"user_data,omitempty" json:"user_data,omitempty"`
	Tags           map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// InstanceFilter selects instances by id, state, tag or raw EC2 filter.
// Tag keys are shorthand for the EC2 filter form "tag:<key>".
type InstanceFilter struct {
	IDs     []string          `json:"ids,omitempty"`
	States  []string          `json:"states,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
	Filters map[string]string `json:"filters,omitempty"`
}

// Empty reports whether the filter matches everything
func (f InstanceFilter) Empty() bool {
	return len(f.IDs) == 0 && len(f.States) == 0 && len(f.Tags) == 0 && len(f.Filters) == 0
}

// Name returns the instance Name tag
func (i *Instance) Name() string {
	return i.Tags["Name"]
}

// IsLive reports whether the instance is neither terminated nor shutting down
func (i *Instance) IsLive() bool {
	return i.State != StateTerminated && i.State != StateShuttingDown
}

// Matches checks if the instance matches filter criteria
func (i *Instance) Matches(filter InstanceFilter) bool {
	return i.matchesIDs(filter) && i.matchesStates(filter) && i.matchesTags(filter)
}

func (i *Instance) matchesIDs(filter InstanceFilter) bool {
	if len(filter.IDs) == 0 {
		return true
	}
	for _, id := range filter.IDs {
		if i.ID == id {
			return true
		}
	}
	return false
}

func (i *Instance) matchesStates(filter InstanceFilter) bool {
	if len(filter.States) == 0 {
		return true
	}
	for _, state := range filter.States {
		if i.State == state {
			return true
		}
	}
	return false
}

func (i *Instance) matchesTags(filter InstanceFilter) bool {
	for key, value := range filter.Tags {
		if i.Tags[key] != value {
			return false
		}
	}
	return true
}

// FilterLive drops terminated and shutting-down instances
func FilterLive(instances []Instance) []Instance {
	var live []Instance
	for _, instance := range instances {
		if instance.IsLive() {
			live = append(live, instance)
		}
	}
	return live
}

// SortByLaunchTime returns instances ordered by launch time, oldest first
func SortByLaunchTime(instances []Instance, desc bool) []Instance {
	sorted := make([]Instance, len(instances))
	copy(sorted, instances)
	sort.SliceStable(sorted, func(a, b int) bool {
		if desc {
			return sorted[a].LaunchTime.After(sorted[b].LaunchTime)
		}
		return sorted[a].LaunchTime.Before(sorted[b].LaunchTime)
	})
	return sorted
}

// Latest returns the most recently launched live instance, or nil
func Latest(instances []Instance) *Instance {
	live := SortByLaunchTime(FilterLive(instances), false)
	if len(live) == 0 {
		return nil
	}
	return &live[len(live)-1]
}

// Hosts returns the public DNS name of each instance that has one
func Hosts(instances []Instance) []string {
	var hosts []string
	for _, instance := range instances {
		if instance.PublicDNS != "" {
			hosts = append(hosts, instance.PublicDNS)
		}
	}
	return hosts
}
