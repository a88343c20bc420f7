package capture

import "go.uber.org/fx"

var Module = fx.Module("capture",
	fx.Provide(NewManager),
)
