package domain

import "strings"

// Phase is the workflow status of a training/product row. Transitions are
// made exclusively by the external pipeline; this service only observes them.
type Phase string

const (
	PhaseAguardando  Phase = "aguardando"
	PhaseRecebido    Phase = "recebido"
	PhaseLeitura     Phase = "leitura"
	PhaseTreinamento Phase = "treinamento"
	PhaseFinalizado  Phase = "finalizado"
)

const phaseErrorSuffix = " erro"

// IsError reports whether the phase is a "<stage> erro" variant.
func (p Phase) IsError() bool {
	return strings.HasSuffix(string(p), phaseErrorSuffix)
}

// Stage returns the base stage, stripping an error suffix if present.
func (p Phase) Stage() Phase {
	return Phase(strings.TrimSuffix(string(p), phaseErrorSuffix))
}

// Terminal reports whether the pipeline will make no further transitions:
// finalizado, or any error variant.
func (p Phase) Terminal() bool {
	return p == PhaseFinalizado || p.IsError()
}

// Closeable reports whether the upload modal's close action is enabled.
// Same set as Terminal; kept separate because the UI contract names it.
func (p Phase) Closeable() bool { return p.Terminal() }

// AsError returns the "<stage> erro" variant of the phase. Calling it on
// an error variant is a no-op.
func (p Phase) AsError() Phase {
	if p.IsError() {
		return p
	}
	return Phase(string(p) + phaseErrorSuffix)
}

// Known reports whether the stage is one the pipeline defines.
func (p Phase) Known() bool {
	switch p.Stage() {
	case PhaseAguardando, PhaseRecebido, PhaseLeitura, PhaseTreinamento, PhaseFinalizado:
		return true
	}
	return false
}

// PhaseDisplay is the icon/message pair rendered for a phase.
type PhaseDisplay struct {
	Icon    string `json:"icon"`
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

var phaseDisplays = map[Phase]PhaseDisplay{
	PhaseAguardando:  {Icon: "clock", Message: "Aguardando envio do conteúdo"},
	PhaseRecebido:    {Icon: "inbox", Message: "Conteúdo recebido"},
	PhaseLeitura:     {Icon: "book-open", Message: "Lendo o conteúdo"},
	PhaseTreinamento: {Icon: "cpu", Message: "Treinando o modelo"},
	PhaseFinalizado:  {Icon: "check-circle", Message: "Treinamento concluído"},
}

// Display resolves the icon/message pair for a phase. Error variants reuse
// their stage's entry with an error flag; unknown phases fall back to the
// waiting display so the UI never renders blank.
func (p Phase) Display() PhaseDisplay {
	d, ok := phaseDisplays[p.Stage()]
	if !ok {
		d = phaseDisplays[PhaseAguardando]
	}
	if p.IsError() {
		d.Icon = "alert-triangle"
		d.Message = "Falha na etapa: " + string(p.Stage())
		d.Error = true
	}
	return d
}
