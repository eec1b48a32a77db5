package app

import (
	"github.com/vk/nodeflow/internal/registry"
	"github.com/vk/nodeflow/modules/arith"
	"github.com/vk/nodeflow/modules/color"
	"github.com/vk/nodeflow/modules/listops"
	"github.com/vk/nodeflow/modules/logic"
	"github.com/vk/nodeflow/modules/pathops"
	"github.com/vk/nodeflow/modules/rasterops"
	"github.com/vk/nodeflow/modules/source"
	strmod "github.com/vk/nodeflow/modules/strings"
	"github.com/vk/nodeflow/modules/vector"
)

// coreModules is the fixed set of builtin node-kind modules registered
// at process start when the caller provides none.
var coreModules = []registry.Module{
	&source.Module{},
	&arith.Module{},
	&logic.Module{},
	&strmod.Module{},
	&vector.Module{},
	&color.Module{},
	&pathops.Module{},
	&rasterops.Module{},
	&listops.Module{},
}
