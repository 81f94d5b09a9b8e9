// Package all imports all supported registry implementations.
//
// Import this package for its side effects to register all ecosystems:
//
//	import (
//		"github.com/mpiton/dependi-engine"
//		_ "github.com/mpiton/dependi-engine/all"
//	)
//
//	// Now all ecosystems are available
//	ecosystems := dependi.SupportedEcosystems()
//	// ["cargo", "composer", "gem", "golang", "npm", "nuget", "pub", "pypi"]
package all

import (
	_ "github.com/mpiton/dependi-engine/internal/cargo"
	_ "github.com/mpiton/dependi-engine/internal/golang"
	_ "github.com/mpiton/dependi-engine/internal/npm"
	_ "github.com/mpiton/dependi-engine/internal/nuget"
	_ "github.com/mpiton/dependi-engine/internal/packagist"
	_ "github.com/mpiton/dependi-engine/internal/pub"
	_ "github.com/mpiton/dependi-engine/internal/pypi"
	_ "github.com/mpiton/dependi-engine/internal/rubygems"
)
