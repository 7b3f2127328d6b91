package modules

import (
	"errors"
	"image"
	"math"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	"github.com/idphotolab/go-idphoto-pipeline/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// FaceDetector is the polymorphism point between detector implementations.
// The permissive flag requests a second-chance pass with relaxed thresholds;
// implementations that have no relaxed mode may return the same candidates.
type FaceDetector interface {
	Detect(img gocv.Mat, permissive bool) ([]config.FaceDetectionResult, error)
}

// TritonFaceDetector is the landmark-based neural detector variant, served
// by a Triton inference server over gRPC.
type TritonFaceDetector struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelConfig  *triton_proto.ModelConfigResponse
	ModelParams  *config.TritonFaceDetectionParams
}

func NewTritonFaceDetector(triton *gotritonclient.TritonGRPCClient, cfg *config.TritonFaceDetectionParams) (*TritonFaceDetector, error) {
	if cfg == nil {
		cfg = config.DefaultTritonFaceDetectionParams
	}

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &TritonFaceDetector{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

// preprocess letterboxes the input into the model's input dims, preserving
// the image aspect ratio, and normalizes pixels into a CHW float32 tensor.
func (c *TritonFaceDetector) preprocess(img gocv.Mat) (*tensor.Dense, config.Size, error) {
	imgH, imgW := img.Size()[0], img.Size()[1]
	srcSize := config.Size{Width: imgW, Height: imgH}
	imgRatio := float64(imgW) / float64(imgH)

	modelH := int(c.ModelConfig.Config.Input[0].Dims[1])
	modelW := int(c.ModelConfig.Config.Input[0].Dims[2])
	modelRatio := float64(modelW) / float64(modelH)

	var newWidth, newHeight int
	if imgRatio > modelRatio {
		newWidth = modelW
		newHeight = int(float64(newWidth) / imgRatio)
	} else {
		newHeight = modelH
		newWidth = int(float64(newHeight) * imgRatio)
	}

	scaledImg := gocv.NewMatWithSizesWithScalar(
		[]int{modelH, modelW},
		gocv.MatTypeCV8UC3,
		gocv.NewScalar(0, 0, 0, 0),
	)
	defer scaledImg.Close()

	roi := scaledImg.Region(image.Rect(0, 0, newWidth, newHeight))
	gocv.Resize(img, &roi, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationLinear)
	roi.Close()

	imgTensor := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(3, modelH, modelW),
	)
	for z := range 3 {
		for y := range modelH {
			for x := range modelW {
				v := (float64(scaledImg.GetVecbAt(y, x)[z]) - c.ModelParams.Mean) * c.ModelParams.Scale
				err := imgTensor.SetAt(float32(v), z, y, x)
				if err != nil {
					return nil, srcSize, err
				}
			}
		}
	}
	return imgTensor, srcSize, nil
}

func (c *TritonFaceDetector) infer(input *tensor.Dense) ([]*tensor.Dense, error) {
	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}

	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0)
	for _, inputCfg := range c.ModelConfig.Config.Input {
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    []int64{1, inputCfg.Dims[0], inputCfg.Dims[1], inputCfg.Dims[2]},
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: input.Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}

	modelRequest.Inputs = modelInputs
	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}

	outputs := make([]*tensor.Dense, 0)
	for oIdx, output := range inferResp.GetOutputs() {
		outputShape := make([]int, 0, len(output.Shape))
		for _, shp := range output.Shape {
			outputShape = append(outputShape, int(shp))
		}
		var tensors *tensor.Dense
		switch output.Datatype {
		case "FP32":
			content := utils.BytesToT32[float32](inferResp.RawOutputContents[oIdx])
			tensors = tensor.New(
				tensor.Of(tensor.Float32),
				tensor.WithShape(outputShape...),
				tensor.WithBacking(content),
			)

		case "INT32":
			content := utils.BytesToT32[int32](inferResp.RawOutputContents[oIdx])
			tensors = tensor.New(
				tensor.Of(tensor.Int),
				tensor.WithShape(outputShape...),
				tensor.WithBacking(content),
			)

		case "FP64":
			content := utils.BytesToT64[float64](inferResp.RawOutputContents[oIdx])
			tensors = tensor.New(
				tensor.Of(tensor.Float64),
				tensor.WithShape(outputShape...),
				tensor.WithBacking(content),
			)

		}
		outputs = append(outputs, tensors)
	}
	return outputs, nil
}

// postprocess converts raw model outputs (normalized by the larger source
// dimension) back into pixel-space boxes with eye landmarks.
func (c *TritonFaceDetector) postprocess(rawOutputs []*tensor.Dense, srcSize config.Size, scoreThreshold float32) ([]config.FaceDetectionResult, error) {
	if len(rawOutputs) < 5 {
		return nil, errors.New("detection model returned too few outputs")
	}
	boxes := rawOutputs[1].Float32s()
	scores := rawOutputs[2].Float32s()
	landmarks := rawOutputs[4].Float32s()

	scale := float32(srcSize.Max())
	results := make([]config.FaceDetectionResult, 0, len(scores))
	for i := range scores {
		if scores[i] < scoreThreshold {
			continue
		}
		if (i+1)*4 > len(boxes) || (i+1)*10 > len(landmarks) {
			break
		}

		x1 := boxes[i*4+0] * scale
		y1 := boxes[i*4+1] * scale
		x2 := boxes[i*4+2] * scale
		y2 := boxes[i*4+3] * scale

		lmk := landmarks[i*10 : i*10+10]
		leftEye := &config.EyePoint{
			X: int(math.Round(float64(lmk[0] * scale))),
			Y: int(math.Round(float64(lmk[1] * scale))),
		}
		rightEye := &config.EyePoint{
			X: int(math.Round(float64(lmk[2] * scale))),
			Y: int(math.Round(float64(lmk[3] * scale))),
		}

		// Degenerate landmark sets (collapsed eyes) are treated as boxes
		// without landmarks rather than rejected outright.
		le := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 2), tensor.WithBacking([]float32{lmk[0] * scale, lmk[1] * scale}))
		re := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 2), tensor.WithBacking([]float32{lmk[2] * scale, lmk[3] * scale}))
		eyeDist, err := utils.ComputeLinearNorm(le, re)
		if err != nil {
			return nil, err
		}
		if eyeDist < c.ModelParams.MinEyeDistance {
			leftEye, rightEye = nil, nil
		}

		box := config.BoundingBox{
			X: int(math.Round(float64(x1))),
			Y: int(math.Round(float64(y1))),
			W: int(math.Round(float64(x2 - x1))),
			H: int(math.Round(float64(y2 - y1))),
		}.ClampTo(srcSize.Width, srcSize.Height)

		results = append(results, config.FaceDetectionResult{
			Box:      box,
			LeftEye:  leftEye,
			RightEye: rightEye,
			Score:    scores[i],
		})
	}
	return results, nil
}

func (c *TritonFaceDetector) Detect(img gocv.Mat, permissive bool) ([]config.FaceDetectionResult, error) {
	inputTensor, srcSize, err := c.preprocess(img)
	if err != nil {
		return nil, err
	}

	outputs, err := c.infer(inputTensor)
	if err != nil {
		return nil, err
	}

	threshold := c.ModelParams.ScoreThreshold
	if permissive {
		threshold = c.ModelParams.RelaxedScoreThreshold
	}
	return c.postprocess(outputs, srcSize, threshold)
}
