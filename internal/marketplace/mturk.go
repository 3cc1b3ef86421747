package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/mturk"
	"github.com/aws/aws-sdk-go-v2/service/mturk/types"
	"github.com/psantana5/hitctl/internal/config"
	"github.com/psantana5/hitctl/pkg/logging"
	"github.com/psantana5/hitctl/pkg/models"
)

const pageSize = 100

// api is the slice of the generated MTurk client used here
type api interface {
	CreateHIT(ctx context.Context, in *mturk.CreateHITInput, optFns ...func(*mturk.Options)) (*mturk.CreateHITOutput, error)
	GetHIT(ctx context.Context, in *mturk.GetHITInput, optFns ...func(*mturk.Options)) (*mturk.GetHITOutput, error)
	ListHITs(ctx context.Context, in *mturk.ListHITsInput, optFns ...func(*mturk.Options)) (*mturk.ListHITsOutput, error)
	UpdateExpirationForHIT(ctx context.Context, in *mturk.UpdateExpirationForHITInput, optFns ...func(*mturk.Options)) (*mturk.UpdateExpirationForHITOutput, error)
	DeleteHIT(ctx context.Context, in *mturk.DeleteHITInput, optFns ...func(*mturk.Options)) (*mturk.DeleteHITOutput, error)
	ListAssignmentsForHIT(ctx context.Context, in *mturk.ListAssignmentsForHITInput, optFns ...func(*mturk.Options)) (*mturk.ListAssignmentsForHITOutput, error)
	SendBonus(ctx context.Context, in *mturk.SendBonusInput, optFns ...func(*mturk.Options)) (*mturk.SendBonusOutput, error)
	GetAccountBalance(ctx context.Context, in *mturk.GetAccountBalanceInput, optFns ...func(*mturk.Options)) (*mturk.GetAccountBalanceOutput, error)
}

// MTurk is the Amazon Mechanical Turk requester client
type MTurk struct {
	api    api
	logger *logging.Logger
}

// NewMTurk connects to the endpoint configured in cfg. Static keys are used when
// present, otherwise the default AWS credential chain.
func NewMTurk(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*MTurk, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := mturk.NewFromConfig(awsCfg, func(o *mturk.Options) {
		if cfg.MTurk.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.MTurk.EndpointURL)
		}
	})

	if logger == nil {
		logger = logging.Discard()
	}
	logger.Info("Connected to MTurk", logging.Fields{"endpoint": cfg.MTurk.EndpointURL, "sandbox": cfg.IsSandbox()})

	return &MTurk{api: client, logger: logger}, nil
}

// LoadAWSConfig builds the shared AWS configuration for MTurk and S3
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWS.Region),
	}
	if cfg.AWS.AccessKeyID != "" && cfg.AWS.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func (m *MTurk) CreateHIT(ctx context.Context, req HITRequest) (*models.HITStatus, error) {
	in := &mturk.CreateHITInput{
		Title:                       aws.String(req.Task.Title),
		Description:                 aws.String(req.Task.Description),
		Reward:                      aws.String(req.Task.Reward),
		MaxAssignments:              aws.Int32(req.Task.MaxAssignments),
		LifetimeInSeconds:           aws.Int64(req.Task.Lifetime),
		AssignmentDurationInSeconds: aws.Int64(req.Task.AssignmentDuration),
		AutoApprovalDelayInSeconds:  aws.Int64(req.Task.AutoApprovalDelay),
		Question:                    aws.String(req.Question),
	}
	if req.Task.Keywords != "" {
		in.Keywords = aws.String(req.Task.Keywords)
	}
	if req.Annotation != "" {
		in.RequesterAnnotation = aws.String(req.Annotation)
	}
	if req.UniqueToken != "" {
		in.UniqueRequestToken = aws.String(req.UniqueToken)
	}

	out, err := m.api.CreateHIT(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create hit: %w", err)
	}
	if out.HIT == nil {
		return nil, errors.New("create hit: empty response")
	}
	status := fromHIT(*out.HIT)
	return &status, nil
}

func (m *MTurk) GetHIT(ctx context.Context, hitID string) (*models.HITStatus, error) {
	out, err := m.api.GetHIT(ctx, &mturk.GetHITInput{HITId: aws.String(hitID)})
	if err != nil {
		return nil, fmt.Errorf("get hit %s: %w", hitID, err)
	}
	if out.HIT == nil {
		return nil, fmt.Errorf("get hit %s: %w", hitID, ErrHITNotFound)
	}
	status := fromHIT(*out.HIT)
	return &status, nil
}

func (m *MTurk) ListHITs(ctx context.Context) ([]models.HITStatus, error) {
	var hits []models.HITStatus
	p := mturk.NewListHITsPaginator(m.api, &mturk.ListHITsInput{MaxResults: aws.Int32(pageSize)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return hits, fmt.Errorf("list hits: %w", err)
		}
		for _, h := range page.HITs {
			hits = append(hits, fromHIT(h))
		}
	}
	return hits, nil
}

func (m *MTurk) DeleteHIT(ctx context.Context, hitID string) error {
	hit, err := m.GetHIT(ctx, hitID)
	if err != nil {
		return err
	}

	if hit.Assignable() {
		_, err := m.api.UpdateExpirationForHIT(ctx, &mturk.UpdateExpirationForHITInput{
			HITId:    aws.String(hitID),
			ExpireAt: aws.Time(time.Unix(0, 0)),
		})
		if err != nil {
			return fmt.Errorf("expire hit %s: %w", hitID, err)
		}
		m.logger.Debug("Expired HIT before deletion", logging.Fields{"hit_id": hitID})
	}

	if _, err := m.api.DeleteHIT(ctx, &mturk.DeleteHITInput{HITId: aws.String(hitID)}); err != nil {
		return fmt.Errorf("delete hit %s: %w", hitID, err)
	}
	return nil
}

func (m *MTurk) ListAssignments(ctx context.Context, hitID string, statuses ...string) ([]models.Assignment, error) {
	in := &mturk.ListAssignmentsForHITInput{
		HITId:      aws.String(hitID),
		MaxResults: aws.Int32(pageSize),
	}
	for _, s := range statuses {
		in.AssignmentStatuses = append(in.AssignmentStatuses, types.AssignmentStatus(s))
	}

	var assignments []models.Assignment
	p := mturk.NewListAssignmentsForHITPaginator(m.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return assignments, fmt.Errorf("list assignments for %s: %w", hitID, err)
		}
		for _, a := range page.Assignments {
			assignments = append(assignments, fromAssignment(a))
		}
	}
	return assignments, nil
}

func (m *MTurk) SendBonus(ctx context.Context, req BonusRequest) error {
	in := &mturk.SendBonusInput{
		WorkerId:     aws.String(req.WorkerID),
		AssignmentId: aws.String(req.AssignmentID),
		BonusAmount:  aws.String(req.Amount),
		Reason:       aws.String(req.Reason),
	}
	if req.UniqueToken != "" {
		in.UniqueRequestToken = aws.String(req.UniqueToken)
	}
	if _, err := m.api.SendBonus(ctx, in); err != nil {
		return fmt.Errorf("send bonus for %s: %w", req.AssignmentID, err)
	}
	return nil
}

func (m *MTurk) AccountBalance(ctx context.Context) (string, error) {
	out, err := m.api.GetAccountBalance(ctx, &mturk.GetAccountBalanceInput{})
	if err != nil {
		return "", fmt.Errorf("get account balance: %w", err)
	}
	return aws.ToString(out.AvailableBalance), nil
}

func fromHIT(h types.HIT) models.HITStatus {
	return models.HITStatus{
		HITID:                aws.ToString(h.HITId),
		HITGroupID:           aws.ToString(h.HITGroupId),
		Title:                aws.ToString(h.Title),
		Status:               string(h.HITStatus),
		MaxAssignments:       aws.ToInt32(h.MaxAssignments),
		AssignmentsPending:   aws.ToInt32(h.NumberOfAssignmentsPending),
		AssignmentsAvailable: aws.ToInt32(h.NumberOfAssignmentsAvailable),
		AssignmentsCompleted: aws.ToInt32(h.NumberOfAssignmentsCompleted),
		CreatedAt:            aws.ToTime(h.CreationTime),
		ExpiresAt:            aws.ToTime(h.Expiration),
	}
}

func fromAssignment(a types.Assignment) models.Assignment {
	return models.Assignment{
		AssignmentID: aws.ToString(a.AssignmentId),
		WorkerID:     aws.ToString(a.WorkerId),
		HITID:        aws.ToString(a.HITId),
		Status:       string(a.AssignmentStatus),
		Answer:       aws.ToString(a.Answer),
		SubmittedAt:  aws.ToTime(a.SubmitTime),
	}
}
