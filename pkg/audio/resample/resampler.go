// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Streams interleaved float samples across chunk boundaries
package resample

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64
	tail       []float32 // last input frame of the previous call
	scratch    []float32
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	if channels <= 0 {
		channels = 1
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts input samples to output sample rate using linear interpolation.
// input: interleaved samples at inputRate
// output: interleaved samples at outputRate, sized with OutputSamplesNeeded
// Returns the number of output samples written.
func (r *Resampler) Resample(input []float32, output []float32) int {
	if len(input) < r.channels {
		return 0
	}

	// Prefix the previous call's last frame so interpolation is continuous
	ext := input
	if r.tail != nil {
		r.scratch = append(append(r.scratch[:0], r.tail...), input...)
		ext = r.scratch
	}

	extFrames := len(ext) / r.channels
	outputFrames := len(output) / r.channels

	outIdx := 0
	for outIdx < outputFrames {
		inputIdx := int(r.position)
		if inputIdx >= extFrames-1 {
			break
		}

		frac := float32(r.position - float64(inputIdx))
		for ch := 0; ch < r.channels; ch++ {
			sample1 := ext[inputIdx*r.channels+ch]
			sample2 := ext[(inputIdx+1)*r.channels+ch]
			output[outIdx*r.channels+ch] = sample1*(1-frac) + sample2*frac
		}

		outIdx++
		r.position += r.ratio
	}

	// Rebase onto the last frame, which becomes the next call's first
	r.position -= float64(extFrames - 1)
	if r.position < 0 {
		r.position = 0
	}
	last := input[len(input)-r.channels:]
	r.tail = append(r.tail[:0], last...)

	return outIdx * r.channels
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.tail = nil
}

// OutputSamplesNeeded returns an upper bound of output samples produced
// from inputSamples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples/r.channels + 1
	outputFrames := int(float64(inputFrames)/r.ratio) + 1
	return outputFrames * r.channels
}

// Convert resamples a complete buffer in one call
func Convert(input []float32, inputRate, outputRate, channels int) []float32 {
	if inputRate == outputRate {
		return input
	}
	r := New(inputRate, outputRate, channels)
	output := make([]float32, r.OutputSamplesNeeded(len(input)))
	n := r.Resample(input, output)
	return output[:n]
}
