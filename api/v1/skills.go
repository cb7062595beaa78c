package v1

import (
	"net/http"

	"pilot/internal/gateway/handlers"
)

// SkillInfo represents one loaded skill.
type SkillInfo struct {
	Name        string `json:"name"`
	Tool        string `json:"tool"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Version     string `json:"version,omitempty"`
	Author      string `json:"author,omitempty"`
	Runtime     string `json:"runtime,omitempty"`
	Parameters  int    `json:"parameters"`
}

// SkillListResponse is the response for listing skills.
type SkillListResponse struct {
	Skills []*SkillInfo `json:"skills"`
	Count  int          `json:"count"`
}

// HandleListSkills returns the current skill snapshot.
func (r *Router) HandleListSkills(w http.ResponseWriter, req *http.Request) {
	if r.skills == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "skill manager not initialized")
		return
	}

	snapshot := r.skills.List()
	infos := make([]*SkillInfo, 0, len(snapshot))
	for _, s := range snapshot {
		infos = append(infos, &SkillInfo{
			Name:        s.Name,
			Tool:        s.ToolName(),
			Description: s.Description,
			Category:    s.Category,
			Version:     s.Version,
			Author:      s.Author,
			Runtime:     s.Runtime,
			Parameters:  len(s.Parameters),
		})
	}

	handlers.SendJSON(w, http.StatusOK, SkillListResponse{
		Skills: infos,
		Count:  len(infos),
	})
}
