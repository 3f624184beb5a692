package editorsim

import "fmt"

type CompileArgs struct {
	SystemPath string `json:"system_path"`
}

type CompileReply struct {
	SystemPath string   `json:"system_path"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
}

// NiagaraService compiles particle systems.
type NiagaraService struct {
	ed *Editor
}

// CompileWithResults compiles a system and reports its diagnostics. A system with
// compile errors is still a successful call: Success is false and Errors says why.
func (s *NiagaraService) CompileWithResults(args *CompileArgs, reply *CompileReply) error {
	s.ed.mu.Lock()
	defer s.ed.mu.Unlock()

	a, ok := s.ed.lookup(args.SystemPath)
	if !ok {
		return fmt.Errorf("niagara system %s not found", args.SystemPath)
	}
	if a.Class != ClassNiagaraSystem {
		return fmt.Errorf("asset %s is a %s, not a NiagaraSystem", args.SystemPath, a.Class)
	}
	reply.SystemPath = args.SystemPath
	reply.Errors = append([]string{}, a.CompileErrors...)
	reply.Warnings = append([]string{}, a.CompileWarnings...)
	reply.Success = len(reply.Errors) == 0
	return nil
}
