// Package engine is the block-based rendering substrate effect graphs run on.
//
// A Context owns nodes and renders them on demand: Render pulls a
// destination node, which pulls its inputs, and so on up to the sources.
// Every node sums all of its inputs into one block before its Processor
// runs, so fan-in needs no mixer node. Parameters are Param values that can
// jump (Set) or glide (RampTo); ramps progress sample by sample while
// rendering.
//
// The units in this package wrap github.com/cwbudde/algo-dsp primitives
// (delay lines, biquads, waveshapers, bit crushers, compressors) and add
// the stereo handling, parameter ramps and modulation the graph compiler
// needs.
package engine
