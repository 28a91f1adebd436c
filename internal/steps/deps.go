package steps

import (
	"log/slog"
	"net/http"

	"github.com/shaiso/Integrator/internal/artifact"
	"github.com/shaiso/Integrator/internal/scm"
)

// Deps — зависимости стандартных шагов.
type Deps struct {
	Configs    RepoConfigProvider
	SCM        scm.Factory
	Artifacts  artifact.Registry
	HTTPClient *http.Client
	Logger     *slog.Logger
}
