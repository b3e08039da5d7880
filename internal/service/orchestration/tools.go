package orchestration

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolGetUserProfile    = "get_user_profile"
	ToolGetJobDescription = "get_job_description"
	ToolGetResume         = "get_resume"
	ToolSaveResume        = "save_resume"
	ToolListVersions      = "list_resume_versions"
	ToolPushResumeUpdate  = "push_resume_update"
	ToolSendAgentResponse = "send_agent_response"
)

type noParams struct{}

type versionParams struct {
	Version int `json:"version,omitempty"`
}

type saveResumeParams struct {
	Resume  string `json:"resume"`
	Version int    `json:"version,omitempty"`
}

type messageParams struct {
	Message string `json:"message"`
}

var versionParam = map[string]*schema.ParameterInfo{
	"version": {
		Desc: "Resume version number. Omit to use the latest version.",
		Type: schema.Integer,
	},
}

// NewEinoTools exposes t as eino tools the agent can call.
func NewEinoTools(t Tools) []tool.BaseTool {
	return []tool.BaseTool{
		utils.NewTool(&schema.ToolInfo{
			Name: ToolGetUserProfile,
			Desc: "Get the user's profile (their uploaded resume or CV text).",
		}, func(ctx context.Context, _ *noParams) (string, error) {
			return t.ReadProfile(ctx), nil
		}),

		utils.NewTool(&schema.ToolInfo{
			Name: ToolGetJobDescription,
			Desc: "Get the job description the resume should be tailored to.",
		}, func(ctx context.Context, _ *noParams) (string, error) {
			return t.ReadJobDescription(ctx), nil
		}),

		utils.NewTool(&schema.ToolInfo{
			Name:        ToolGetResume,
			Desc:        "Get a saved resume. Returns the latest version unless a version is given.",
			ParamsOneOf: schema.NewParamsOneOfByParams(versionParam),
		}, func(ctx context.Context, p *versionParams) (string, error) {
			return t.ReadDocument(ctx, versionOf(p)), nil
		}),

		utils.NewTool(&schema.ToolInfo{
			Name: ToolSaveResume,
			Desc: "Save a resume as pure HTML. Saves as the next version unless a version is given.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"resume": {
					Desc:     "Complete resume HTML wrapped in a div with id resume.",
					Type:     schema.String,
					Required: true,
				},
				"version": versionParam["version"],
			}),
		}, func(ctx context.Context, p *saveResumeParams) (string, error) {
			if p == nil {
				return t.WriteDocument(ctx, "", 0), nil
			}
			return t.WriteDocument(ctx, p.Resume, p.Version), nil
		}),

		utils.NewTool(&schema.ToolInfo{
			Name: ToolListVersions,
			Desc: "List the saved resume version numbers, oldest first.",
		}, func(ctx context.Context, _ *noParams) (string, error) {
			return t.ListDocumentVersions(ctx), nil
		}),

		utils.NewTool(&schema.ToolInfo{
			Name:        ToolPushResumeUpdate,
			Desc:        "Refresh the user's resume preview with the latest or the given saved version.",
			ParamsOneOf: schema.NewParamsOneOfByParams(versionParam),
		}, func(ctx context.Context, p *versionParams) (string, error) {
			t.PushDocumentUpdate(ctx, versionOf(p))
			return "Success: Resume preview updated", nil
		}),

		utils.NewTool(&schema.ToolInfo{
			Name: ToolSendAgentResponse,
			Desc: "Send a message to the user. All communication with the user goes through this tool.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"message": {
					Desc:     "Message shown to the user.",
					Type:     schema.String,
					Required: true,
				},
			}),
		}, func(ctx context.Context, p *messageParams) (string, error) {
			if p == nil || p.Message == "" {
				return "Error: Message cannot be empty", nil
			}
			t.NotifyUser(ctx, p.Message)
			return "Success: Message sent", nil
		}),
	}
}

func versionOf(p *versionParams) int {
	if p == nil {
		return 0
	}
	return p.Version
}
