package modules

import (
	"errors"
	"image"

	"github.com/idphotolab/go-idphoto-pipeline/config"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"gocv.io/x/gocv"
)

// SegmentationModelClient is the opaque neural soft-segmentation capability:
// it maps a BGR image to a per-pixel foreground probability. A single client
// is shared process-wide by the cascade; it is not guaranteed reentrant, so
// concurrent workers must confine or synchronize it externally.
type SegmentationModelClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelConfig  *triton_proto.ModelConfigResponse
	ModelParams  *config.SegmentationModelParams
}

func NewSegmentationModelClient(triton *gotritonclient.TritonGRPCClient, cfg *config.SegmentationModelParams) (*SegmentationModelClient, error) {
	if cfg == nil {
		cfg = config.DefaultSegmentationModelParams
	}

	inferenceConfig, err := triton.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	return &SegmentationModelClient{
		tritonClient: triton,
		ModelParams:  cfg,
		ModelConfig:  inferenceConfig,
	}, nil
}

/*
Infer produces a foreground probability map for the input image.

Inputs:

  - img (gocv.Mat): input photo in BGR order.

Outputs:

  - prob (gocv.Mat): CV32F map at source resolution, values in [0, 1].
*/
func (c *SegmentationModelClient) Infer(img gocv.Mat) (gocv.Mat, error) {
	srcH, srcW := img.Size()[0], img.Size()[1]
	modelH := int(c.ModelConfig.Config.Input[0].Dims[1])
	modelW := int(c.ModelConfig.Config.Input[0].Dims[2])

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Point{X: modelW, Y: modelH}, 0, 0, gocv.InterpolationLinear)

	input := make([]float32, 3*modelH*modelW)
	for z := range 3 {
		for y := range modelH {
			for x := range modelW {
				v := (float64(resized.GetVecbAt(y, x)[z]) - c.ModelParams.Mean) * c.ModelParams.Scale
				input[z*modelH*modelW+y*modelW+x] = float32(v)
			}
		}
	}

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
				Fp32Contents: input,
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}
	modelRequest.Inputs = modelInputs

	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return gocv.Mat{}, err
	}

	outputs := inferResp.GetOutputs()
	if len(outputs) == 0 || len(inferResp.RawOutputContents) == 0 {
		return gocv.Mat{}, errors.New("segmentation model returned no outputs")
	}
	shape := outputs[0].Shape
	if len(shape) < 2 {
		return gocv.Mat{}, errors.New("segmentation model output is not a 2D map")
	}
	outH := int(shape[len(shape)-2])
	outW := int(shape[len(shape)-1])

	probSmall, err := gocv.NewMatFromBytes(outH, outW, gocv.MatTypeCV32F, inferResp.RawOutputContents[0])
	if err != nil {
		return gocv.Mat{}, err
	}
	defer probSmall.Close()

	prob := gocv.NewMat()
	gocv.Resize(probSmall, &prob, image.Point{X: srcW, Y: srcH}, 0, 0, gocv.InterpolationLinear)
	return prob, nil
}
