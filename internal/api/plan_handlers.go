package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/narratorapp/narrator-server/internal/domain"
	"github.com/narratorapp/narrator-server/internal/planops"
	"github.com/narratorapp/narrator-server/internal/service"
)

func (s *Server) registerPlanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "generatePlan",
		Method:      http.MethodPost,
		Path:        "/api/v1/chapters/{chapterID}/plan",
		Summary:     "Generate plan",
		Description: "Segments chapter text into a fresh plan; earlier plans for the chapter are marked stale",
		Tags:        []string{"Plans"},
	}, s.handleGeneratePlan)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPlans",
		Method:      http.MethodGet,
		Path:        "/api/v1/plans",
		Summary:     "List plans",
		Description: "Returns all plans, optionally filtered by chapter",
		Tags:        []string{"Plans"},
	}, s.handleListPlans)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPlan",
		Method:      http.MethodGet,
		Path:        "/api/v1/plans/{id}",
		Summary:     "Get plan",
		Description: "Returns the current state of a plan",
		Tags:        []string{"Plans"},
	}, s.handleGetPlan)

	huma.Register(s.api, huma.Operation{
		OperationID: "splitSegment",
		Method:      http.MethodPost,
		Path:        "/api/v1/plans/{id}/segments/{segmentID}/split",
		Summary:     "Split segment",
		Description: "Splits a segment at the word boundary nearest to the given offset",
		Tags:        []string{"Segments"},
	}, s.handleSplitSegment)

	huma.Register(s.api, huma.Operation{
		OperationID: "mergeSegment",
		Method:      http.MethodPost,
		Path:        "/api/v1/plans/{id}/segments/{segmentID}/merge",
		Summary:     "Merge segment",
		Description: "Merges a segment with its neighbor in the given direction",
		Tags:        []string{"Segments"},
	}, s.handleMergeSegment)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteSegment",
		Method:      http.MethodDelete,
		Path:        "/api/v1/plans/{id}/segments/{segmentID}",
		Summary:     "Delete segment",
		Description: "Removes a segment and re-indexes the remainder",
		Tags:        []string{"Segments"},
	}, s.handleDeleteSegment)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSegment",
		Method:      http.MethodPatch,
		Path:        "/api/v1/plans/{id}/segments/{segmentID}",
		Summary:     "Update segment",
		Description: "Edits a segment's text or toggles its revision flag",
		Tags:        []string{"Segments"},
	}, s.handleUpdateSegment)

	huma.Register(s.api, huma.Operation{
		OperationID: "undoPlan",
		Method:      http.MethodPost,
		Path:        "/api/v1/plans/{id}/undo",
		Summary:     "Undo",
		Description: "Restores the plan state before the most recent operation",
		Tags:        []string{"Plans"},
	}, s.handleUndoPlan)

	huma.Register(s.api, huma.Operation{
		OperationID: "assignVoices",
		Method:      http.MethodPut,
		Path:        "/api/v1/plans/{id}/voices",
		Summary:     "Assign voices",
		Description: "Writes an externally computed segment-to-voice mapping onto the plan",
		Tags:        []string{"Plans"},
	}, s.handleAssignVoices)

	huma.Register(s.api, huma.Operation{
		OperationID: "completePlan",
		Method:      http.MethodPost,
		Path:        "/api/v1/plans/{id}/complete",
		Summary:     "Complete plan",
		Description: "Marks the plan as complete and persists it immediately",
		Tags:        []string{"Plans"},
	}, s.handleCompletePlan)
}

// === DTOs ===

type SegmentResponse struct {
	ID            string `json:"id" doc:"Segment ID"`
	Order         int    `json:"order" doc:"Position in the plan, 0-based"`
	StartIdx      int    `json:"start_idx" doc:"Byte offset into the chapter text, inclusive"`
	EndIdx        int    `json:"end_idx" doc:"Byte offset into the chapter text, exclusive"`
	Text          string `json:"text" doc:"Current segment text"`
	OriginalText  string `json:"original_text,omitempty" doc:"Text at segmentation time, kept for drift detection"`
	Delimiter     string `json:"delimiter" doc:"How the segment boundary was produced"`
	Voice         string `json:"voice,omitempty" doc:"Assigned speaker label"`
	NeedsRevision bool   `json:"needs_revision,omitempty" doc:"Review flag"`
	Oversized     bool   `json:"oversized,omitempty" doc:"Set when an unsplittable sentence exceeds the size ceiling"`
}

type PlanResponse struct {
	ID         string            `json:"id" doc:"Plan ID"`
	ChapterID  string            `json:"chapter_id" doc:"Chapter this plan segments"`
	Segments   []SegmentResponse `json:"segments" doc:"Ordered segments"`
	IsComplete bool              `json:"is_complete" doc:"Completion flag"`
	Stale      bool              `json:"stale,omitempty" doc:"Set when the chapter source changed after generation"`
	CreatedAt  time.Time         `json:"created_at" doc:"Creation time"`
	UpdatedAt  time.Time         `json:"updated_at" doc:"Last mutation time"`
}

type PlanOutput struct {
	Body PlanResponse
}

type GeneratePlanRequest struct {
	Text string `json:"text" validate:"required" doc:"Raw chapter text"`
}

type GeneratePlanInput struct {
	ChapterID string `path:"chapterID" doc:"Chapter ID"`
	Body      GeneratePlanRequest
}

type ListPlansInput struct {
	ChapterID string `query:"chapter_id" doc:"Filter by chapter ID"`
}

type ListPlansResponse struct {
	Plans []PlanResponse `json:"plans" doc:"Plans"`
}

type ListPlansOutput struct {
	Body ListPlansResponse
}

type GetPlanInput struct {
	ID string `path:"id" doc:"Plan ID"`
}

type SplitSegmentRequest struct {
	Offset int `json:"offset" doc:"Byte offset into the segment text; snapped to the word boundary at or before it"`
}

type SplitSegmentInput struct {
	ID        string `path:"id" doc:"Plan ID"`
	SegmentID string `path:"segmentID" doc:"Segment ID"`
	Body      SplitSegmentRequest
}

type MergeSegmentRequest struct {
	Direction string `json:"direction" validate:"required,oneof=forward backward" doc:"Neighbor to merge with"`
}

type MergeSegmentInput struct {
	ID        string `path:"id" doc:"Plan ID"`
	SegmentID string `path:"segmentID" doc:"Segment ID"`
	Body      MergeSegmentRequest
}

type DeleteSegmentInput struct {
	ID        string `path:"id" doc:"Plan ID"`
	SegmentID string `path:"segmentID" doc:"Segment ID"`
}

type UpdateSegmentRequest struct {
	Text          *string `json:"text,omitempty" doc:"Replacement text"`
	NeedsRevision *bool   `json:"needs_revision,omitempty" doc:"New revision flag value"`
}

type UpdateSegmentInput struct {
	ID        string `path:"id" doc:"Plan ID"`
	SegmentID string `path:"segmentID" doc:"Segment ID"`
	Body      UpdateSegmentRequest
}

type UndoPlanInput struct {
	ID string `path:"id" doc:"Plan ID"`
}

type AssignVoicesRequest struct {
	Voices map[string]string `json:"voices" validate:"required" doc:"Segment ID to voice label mapping"`
}

type AssignVoicesInput struct {
	ID   string `path:"id" doc:"Plan ID"`
	Body AssignVoicesRequest
}

type CompletePlanInput struct {
	ID string `path:"id" doc:"Plan ID"`
}

// === Handlers ===

func (s *Server) handleGeneratePlan(ctx context.Context, input *GeneratePlanInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.GeneratePlan(ctx, input.ChapterID, input.Body.Text)
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleListPlans(ctx context.Context, input *ListPlansInput) (*ListPlansOutput, error) {
	var (
		plans []*domain.Plan
		err   error
	)
	if input.ChapterID != "" {
		plans, err = s.services.Plan.ListPlansByChapter(ctx, input.ChapterID)
	} else {
		plans, err = s.services.Plan.ListPlans(ctx)
	}
	if err != nil {
		return nil, err
	}

	resp := make([]PlanResponse, len(plans))
	for i, p := range plans {
		resp[i] = mapPlanResponse(p)
	}
	return &ListPlansOutput{Body: ListPlansResponse{Plans: resp}}, nil
}

func (s *Server) handleGetPlan(ctx context.Context, input *GetPlanInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.GetPlan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleSplitSegment(ctx context.Context, input *SplitSegmentInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.Apply(ctx, input.ID, service.OperationRequest{
		Op:        service.OpSplit,
		SegmentID: input.SegmentID,
		Offset:    input.Body.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleMergeSegment(ctx context.Context, input *MergeSegmentInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.Apply(ctx, input.ID, service.OperationRequest{
		Op:        service.OpMerge,
		SegmentID: input.SegmentID,
		Direction: planops.Direction(input.Body.Direction),
	})
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleDeleteSegment(ctx context.Context, input *DeleteSegmentInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.Apply(ctx, input.ID, service.OperationRequest{
		Op:        service.OpDelete,
		SegmentID: input.SegmentID,
	})
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleUpdateSegment(ctx context.Context, input *UpdateSegmentInput) (*PlanOutput, error) {
	if input.Body.Text == nil && input.Body.NeedsRevision == nil {
		return nil, huma.Error400BadRequest("nothing to update: provide text or needs_revision")
	}

	var (
		plan *domain.Plan
		err  error
	)
	if input.Body.Text != nil {
		plan, err = s.services.Plan.Apply(ctx, input.ID, service.OperationRequest{
			Op:        service.OpEdit,
			SegmentID: input.SegmentID,
			Text:      *input.Body.Text,
		})
		if err != nil {
			return nil, err
		}
	}
	if input.Body.NeedsRevision != nil {
		plan, err = s.services.Plan.Apply(ctx, input.ID, service.OperationRequest{
			Op:            service.OpRevision,
			SegmentID:     input.SegmentID,
			NeedsRevision: *input.Body.NeedsRevision,
		})
		if err != nil {
			return nil, err
		}
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleUndoPlan(ctx context.Context, input *UndoPlanInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.Undo(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleAssignVoices(ctx context.Context, input *AssignVoicesInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.AssignVoices(ctx, input.ID, input.Body.Voices)
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

func (s *Server) handleCompletePlan(ctx context.Context, input *CompletePlanInput) (*PlanOutput, error) {
	plan, err := s.services.Plan.MarkComplete(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PlanOutput{Body: mapPlanResponse(plan)}, nil
}

// === Mappers ===

func mapPlanResponse(p *domain.Plan) PlanResponse {
	segments := make([]SegmentResponse, len(p.Segments))
	for i, seg := range p.Segments {
		segments[i] = SegmentResponse{
			ID:            seg.ID,
			Order:         seg.Order,
			StartIdx:      seg.StartIndex,
			EndIdx:        seg.EndIndex,
			Text:          seg.Text,
			OriginalText:  seg.OriginalText,
			Delimiter:     string(seg.Delimiter),
			Voice:         seg.Voice,
			NeedsRevision: seg.NeedsRevision,
			Oversized:     seg.Oversized,
		}
	}
	return PlanResponse{
		ID:         p.ID,
		ChapterID:  p.ChapterID,
		Segments:   segments,
		IsComplete: p.IsComplete,
		Stale:      p.Stale,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
