package shader

import (
	"embed"
	"io/fs"

	"github.com/zeebo/xxh3"
)

// BuiltinKernel is the file name of the bundled check kernel in BuiltinFS.
const BuiltinKernel = "compute.wgsl"

// DefaultEntryPoint is the kernel function of the bundled kernel.
const DefaultEntryPoint = "CSMain"

//go:embed kernels/compute.wgsl
var kernels embed.FS

// BuiltinFS holds the bundled kernels at its root.
var BuiltinFS fs.FS = mustSub(kernels, "kernels")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// BuiltinSource returns the bundled kernel source.
func BuiltinSource() []byte {
	src, err := fs.ReadFile(BuiltinFS, BuiltinKernel)
	if err != nil {
		panic(err)
	}
	return src
}

// SourceHash returns the hash stored in ShaderBinary.SourceHash for src.
func SourceHash(src []byte) uint64 { return xxh3.Hash(src) }

// BuiltinSourceHash returns the SourceHash of the bundled kernel.
func BuiltinSourceHash() uint64 { return SourceHash(BuiltinSource()) }
