package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	r53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/opsfab/opsfab/types"
)

const defaultTTL = 60

// DNSClient is the Route53 surface opsfab needs
type DNSClient interface {
	UpsertRecord(ctx context.Context, zoneID, name, recordType, value string) error
}

// Route53Client implements DNSClient with the AWS SDK
type Route53Client struct {
	route53 *route53.Client
}

// NewRoute53Client builds a client from the default AWS config chain
func NewRoute53Client(ctx context.Context, region string) (*Route53Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Route53Client{route53: route53.NewFromConfig(cfg)}, nil
}

// UpsertRecord creates or updates a record in a hosted zone
func (c *Route53Client) UpsertRecord(ctx context.Context, zoneID, name, recordType, value string) error {
	_, err := c.route53.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &r53types.ChangeBatch{
			Comment: aws.String("opsfab cutover"),
			Changes: []r53types.Change{{
				Action: r53types.ChangeActionUpsert,
				ResourceRecordSet: &r53types.ResourceRecordSet{
					Name:            aws.String(name),
					Type:            r53types.RRType(recordType),
					TTL:             aws.Int64(defaultTTL),
					ResourceRecords: []r53types.ResourceRecord{{Value: aws.String(value)}},
				},
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %s record %s: %w", recordType, name, err)
	}
	return nil
}

// PointAt aims domain at an instance: CNAME to the public DNS name when
// it has one, otherwise an A record to the public IP
func PointAt(ctx context.Context, dns DNSClient, zoneID, domain string, instance *types.Instance) error {
	switch {
	case instance.PublicDNS != "":
		return dns.UpsertRecord(ctx, zoneID, domain, "CNAME", instance.PublicDNS)
	case instance.PublicIP != "":
		return dns.UpsertRecord(ctx, zoneID, domain, "A", instance.PublicIP)
	default:
		return fmt.Errorf("instance %s has no public address", instance.ID)
	}
}

// PointAtLatest aims domain at the most recently launched live instance
// matching filter
func PointAtLatest(ctx context.Context, p *Provider, dns DNSClient, zoneID, domain string, filter types.InstanceFilter) error {
	latest, err := p.LatestInstance(ctx, filter)
	if err != nil {
		return err
	}
	return PointAt(ctx, dns, zoneID, domain, latest)
}
