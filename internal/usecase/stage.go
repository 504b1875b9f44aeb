package usecase

import "writeway/internal/domain"

// minIdeationMessages is the stored message count (three exchanges) an
// ideation session needs in the outline stage to count as complete.
const minIdeationMessages = 6

// normalizeStage maps anything outside the known stage set to the first stage.
func normalizeStage(s domain.Stage) domain.Stage {
	if s.Index() < 0 {
		return domain.StageTopic
	}
	return s
}

// advanceStage moves one step forward after an exchange. Advancement is not
// driven by the reply's content: any exchange in a non-final stage moves on.
func advanceStage(current domain.Stage, storedMessages int) domain.Stage {
	idx := normalizeStage(current).Index()
	if idx < len(domain.Stages)-1 && storedMessages >= 2 {
		return domain.Stages[idx+1]
	}
	return domain.Stages[idx]
}

func ideationComplete(stage domain.Stage, storedMessages int) bool {
	return stage == domain.StageOutline && storedMessages >= minIdeationMessages
}

func stageDirective(stage domain.Stage) string {
	return stagePrompts[normalizeStage(stage)]
}
