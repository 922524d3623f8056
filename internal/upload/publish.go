package upload

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/layerforge/internal/model"
)

// Pinner pins a folder of files
type Pinner interface {
	Pin(ctx context.Context, files []File, meta PinMetadata) (*Receipt, error)
}

// MetadataWriter persists an artifact's metadata and returns the bytes written
type MetadataWriter interface {
	WriteMetadata(a *model.Artifact) ([]byte, error)
}

// Publication records what was pinned for a run
type Publication struct {
	Images   *Receipt
	Metadata *Receipt
}

// Publisher uploads a run's images, then its enriched metadata
type Publisher struct {
	pinner  Pinner
	writer  MetadataWriter
	gateway string
	project string
}

// NewPublisher creates a publisher. gateway prefixes image URIs, e.g. "ipfs://".
func NewPublisher(pinner Pinner, writer MetadataWriter, gateway, project string) *Publisher {
	return &Publisher{
		pinner:  pinner,
		writer:  writer,
		gateway: gateway,
		project: project,
	}
}

// Publish pins every image in one folder, sets each artifact's image URI and
// date from the receipt, rewrites the metadata files and pins them as a
// second folder. Artifacts are modified in place.
func (p *Publisher) Publish(ctx context.Context, artifacts []*model.Artifact) (*Publication, error) {
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no artifacts to publish")
	}

	images := make([]File, 0, len(artifacts))
	keyvalues := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		if len(a.PNG) == 0 {
			return nil, fmt.Errorf("artifact %d has no image data", a.Number)
		}
		images = append(images, File{Name: "images/" + a.Metadata.Name + ".png", Data: a.PNG})
		keyvalues[a.Metadata.Name] = strconv.FormatFloat(a.Metadata.Rarity, 'f', 2, 64)
	}

	imageReceipt, err := p.pinner.Pin(ctx, images, PinMetadata{
		Name:      p.project + " images",
		KeyValues: keyvalues,
	})
	if err != nil {
		return nil, fmt.Errorf("pin images: %w", err)
	}

	pinnedAt, err := imageReceipt.Time()
	if err != nil {
		return nil, err
	}

	documents := make([]File, 0, len(artifacts))
	for _, a := range artifacts {
		a.Metadata.Image = ImageURI(p.gateway, imageReceipt.IpfsHash, a.Metadata.Name)
		a.Metadata.Date = pinnedAt.UnixMilli()

		data, err := p.writer.WriteMetadata(a)
		if err != nil {
			return nil, fmt.Errorf("rewrite metadata %d: %w", a.Number, err)
		}
		documents = append(documents, File{Name: fmt.Sprintf("json/%d.json", a.Number), Data: data})
	}

	metadataReceipt, err := p.pinner.Pin(ctx, documents, PinMetadata{Name: p.project + " metadata"})
	if err != nil {
		return nil, fmt.Errorf("pin metadata: %w", err)
	}

	return &Publication{Images: imageReceipt, Metadata: metadataReceipt}, nil
}

// ImageURI builds the gateway URI of an image inside a pinned folder
func ImageURI(gateway, hash, name string) string {
	if gateway != "" && !strings.HasSuffix(gateway, "/") && !strings.HasSuffix(gateway, "://") {
		gateway += "/"
	}
	return gateway + hash + "/" + url.PathEscape(name+".png")
}
