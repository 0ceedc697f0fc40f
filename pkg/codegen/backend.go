package codegen

import (
	"github.com/xplshn/ccc/pkg/config"
	"github.com/xplshn/ccc/pkg/ir"
)

// Backend renders a finished Module as IR text for the downstream
// toolchain.
type Backend interface {
	GenerateIR(mod *ir.Module, cfg *config.Config) (string, error)
}
