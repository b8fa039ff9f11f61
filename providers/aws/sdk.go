package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/opsfab/opsfab/types"
)

const defaultWaitTimeout = 5 * time.Minute

// SDKClient implements Client with the AWS SDK
type SDKClient struct {
	ec2    *ec2.Client
	region string
}

// NewSDKClient builds a client from the default AWS config chain
func NewSDKClient(ctx context.Context, region string) (*SDKClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SDKClient{
		ec2:    ec2.NewFromConfig(cfg),
		region: cfg.Region,
	}, nil
}

// DescribeInstances lists instances matching filter
func (c *SDKClient) DescribeInstances(ctx context.Context, filter types.InstanceFilter) ([]types.Instance, error) {
	input := &ec2.DescribeInstancesInput{
		InstanceIds: filter.IDs,
		Filters:     buildFilters(filter),
	}

	var instances []types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				instances = append(instances, c.convertInstance(instance))
			}
		}
	}

	return instances, nil
}

// RunInstances launches instances per spec and returns them as reported
// at launch, usually in pending state
func (c *SDKClient) RunInstances(ctx context.Context, spec types.InstanceSpec) ([]types.Instance, error) {
	count := spec.Count
	if count < 1 {
		count = 1
	}

	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.ImageID),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		MinCount:     aws.Int32(int32(count)),
		MaxCount:     aws.Int32(int32(count)),
	}
	if spec.KeyName != "" {
		input.KeyName = aws.String(spec.KeyName)
	}
	if len(spec.SecurityGroups) > 0 {
		input.SecurityGroups = spec.SecurityGroups
	}
	if spec.UserData != "" {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData)))
	}
	if len(spec.Tags) > 0 {
		input.TagSpecifications = []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         buildTags(spec.Tags),
		}}
	}

	output, err := c.ec2.RunInstances(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to run instances: %w", err)
	}

	instances := make([]types.Instance, 0, len(output.Instances))
	for _, instance := range output.Instances {
		instances = append(instances, c.convertInstance(instance))
	}
	return instances, nil
}

// TerminateInstances terminates ids and returns those AWS reports as
// shutting down or already terminated
func (c *SDKClient) TerminateInstances(ctx context.Context, ids []string) ([]string, error) {
	output, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: ids,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to terminate instances: %w", err)
	}

	var terminating []string
	for _, change := range output.TerminatingInstances {
		state := change.CurrentState
		if state == nil {
			continue
		}
		switch state.Name {
		case ec2types.InstanceStateNameShuttingDown, ec2types.InstanceStateNameTerminated:
			terminating = append(terminating, aws.ToString(change.InstanceId))
		}
	}
	return terminating, nil
}

// CreateTags tags instances
func (c *SDKClient) CreateTags(ctx context.Context, ids []string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}

	_, err := c.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: ids,
		Tags:      buildTags(tags),
	})
	if err != nil {
		return fmt.Errorf("failed to tag instances: %w", err)
	}
	return nil
}

// WaitRunning blocks until all ids reach running state
func (c *SDKClient) WaitRunning(ctx context.Context, ids []string) error {
	waiter := ec2.NewInstanceRunningWaiter(c.ec2)
	err := waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids}, defaultWaitTimeout)
	if err != nil {
		return fmt.Errorf("failed waiting for instances to run: %w", err)
	}
	return nil
}

// DescribeSecurityGroup returns the id of a named group, ErrNotFound
// when it doesn't exist
func (c *SDKClient) DescribeSecurityGroup(ctx context.Context, name string) (string, error) {
	output, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupNames: []string{name},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidGroup.NotFound" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to describe security group %s: %w", name, err)
	}

	if len(output.SecurityGroups) == 0 {
		return "", ErrNotFound
	}
	return aws.ToString(output.SecurityGroups[0].GroupId), nil
}

// CreateSecurityGroup creates a group and returns its id
func (c *SDKClient) CreateSecurityGroup(ctx context.Context, name, description string) (string, error) {
	output, err := c.ec2.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create security group %s: %w", name, err)
	}
	return aws.ToString(output.GroupId), nil
}

// AuthorizeIngress opens TCP ports to the world on a group
func (c *SDKClient) AuthorizeIngress(ctx context.Context, groupID string, ports []int32) error {
	permissions := make([]ec2types.IpPermission, 0, len(ports))
	for _, port := range ports {
		permissions = append(permissions, ec2types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		})
	}

	_, err := c.ec2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: permissions,
	})
	if err != nil {
		return fmt.Errorf("failed to authorize ingress on %s: %w", groupID, err)
	}
	return nil
}

// ImportKeyPair uploads a public key under name
func (c *SDKClient) ImportKeyPair(ctx context.Context, name string, publicKey []byte) error {
	_, err := c.ec2.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: publicKey,
	})
	if err != nil {
		return fmt.Errorf("failed to import key pair %s: %w", name, err)
	}
	return nil
}

func (c *SDKClient) convertInstance(instance ec2types.Instance) types.Instance {
	converted := types.Instance{
		ID:        aws.ToString(instance.InstanceId),
		Type:      string(instance.InstanceType),
		Region:    c.region,
		PublicDNS: aws.ToString(instance.PublicDnsName),
		PublicIP:  aws.ToString(instance.PublicIpAddress),
		PrivateIP: aws.ToString(instance.PrivateIpAddress),
		KeyName:   aws.ToString(instance.KeyName),
		Tags:      convertTags(instance.Tags),
	}
	if instance.State != nil {
		converted.State = string(instance.State.Name)
	}
	if instance.Placement != nil {
		converted.AZ = aws.ToString(instance.Placement.AvailabilityZone)
	}
	if instance.LaunchTime != nil {
		converted.LaunchTime = *instance.LaunchTime
	}
	return converted
}

func buildFilters(filter types.InstanceFilter) []ec2types.Filter {
	var filters []ec2types.Filter
	if len(filter.States) > 0 {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("instance-state-name"),
			Values: filter.States,
		})
	}
	for key, value := range filter.Tags {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + key),
			Values: []string{value},
		})
	}
	for name, value := range filter.Filters {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String(name),
			Values: []string{value},
		})
	}
	return filters
}

func buildTags(tags map[string]string) []ec2types.Tag {
	converted := make([]ec2types.Tag, 0, len(tags))
	for key, value := range tags {
		converted = append(converted, ec2types.Tag{
			Key:   aws.String(key),
			Value: aws.String(value),
		})
	}
	return converted
}

func convertTags(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	converted := make(map[string]string, len(tags))
	for _, tag := range tags {
		converted[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return converted
}
