package mutate

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/dgallion1/docedit/internal/document"
)

// fontResource is the page resource key the replacement font is bound to.
const fontResource = "FDocEdit"

// Mutator opens documents with pdfcpu.
type Mutator struct {
	conf *model.Configuration
}

func New() *Mutator {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Mutator{conf: conf}
}

// Load reads and validates data into an editable document.
func (m *Mutator) Load(ctx context.Context, data []byte) (document.OutputDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pctx, err := api.ReadContext(bytes.NewReader(data), m.conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(pctx); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	dims, err := userSpaceDims(pctx)
	if err != nil {
		return nil, fmt.Errorf("page dimensions: %w", err)
	}
	return &Document{
		ctx:   pctx,
		dims:  dims,
		pages: make(map[int]*contentBuilder),
	}, nil
}

// userSpaceDims returns each page's MediaBox size in unrotated user space,
// the space both text extraction and the drawing operators work in.
// PageDims would swap width and height for rotated pages.
func userSpaceDims(pctx *model.Context) ([]types.Dim, error) {
	pbs, err := pctx.PageBoundaries(nil)
	if err != nil {
		return nil, err
	}
	dims := make([]types.Dim, len(pbs))
	for i, pb := range pbs {
		mb := pb.MediaBox()
		if mb == nil {
			dims[i] = types.Dim{Width: 612, Height: 792}
			continue
		}
		dims[i] = mb.Dimensions()
	}
	return dims, nil
}

// Document buffers drawing operations per page and applies them on Save.
type Document struct {
	ctx   *model.Context
	dims  []types.Dim
	pages map[int]*contentBuilder
	font  *types.IndirectRef
}

func (d *Document) PageCount() int { return len(d.dims) }

func (d *Document) PageSize(index int) (document.PageSize, error) {
	if index < 0 || index >= len(d.dims) {
		return document.PageSize{}, fmt.Errorf("page index %d out of range [0,%d)", index, len(d.dims))
	}
	return document.PageSize{Width: d.dims[index].Width, Height: d.dims[index].Height}, nil
}

func (d *Document) builder(index int) (*contentBuilder, error) {
	if index < 0 || index >= len(d.dims) {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", index, len(d.dims))
	}
	b, ok := d.pages[index]
	if !ok {
		b = &contentBuilder{}
		d.pages[index] = b
	}
	return b, nil
}

func (d *Document) DrawRectangle(index int, r document.Rect, fill color.Color) error {
	b, err := d.builder(index)
	if err != nil {
		return err
	}
	b.rect(r.X, r.Y, r.Width, r.Height, fill)
	return nil
}

func (d *Document) DrawText(index int, text string, opts document.TextOptions) error {
	if opts.Font != "" && opts.Font != document.FontHelvetica {
		return fmt.Errorf("unsupported font %q", opts.Font)
	}
	b, err := d.builder(index)
	if err != nil {
		return err
	}
	b.text(fontResource, opts.Size, opts.X, opts.Y, opts.Color, text)
	return nil
}

// Save appends the buffered operations to their pages and serializes.
func (d *Document) Save(ctx context.Context) ([]byte, error) {
	indices := make([]int, 0, len(d.pages))
	for i := range d.pages {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	for _, i := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := d.applyPage(i+1, d.pages[i].Bytes()); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}

	var out bytes.Buffer
	if err := api.WriteContext(d.ctx, &out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}

func (d *Document) applyPage(pageNr int, ops []byte) error {
	if len(ops) == 0 {
		return nil
	}
	// Without consolidation, inh.Resources is the page's own Resources or,
	// when it has none, the one inherited from the nearest Pages node.
	pageDict, _, inh, err := d.ctx.PageDict(pageNr, false)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return fmt.Errorf("missing page dict")
	}
	if err := d.bindFont(pageDict, inh.Resources); err != nil {
		return err
	}

	// Wrap the existing content in q/Q so its graphics state cannot leak
	// into the appended operators.
	pre, err := d.newStream([]byte("q\n"))
	if err != nil {
		return err
	}
	post, err := d.newStream(append([]byte("Q\n"), ops...))
	if err != nil {
		return err
	}

	contents := types.Array{*pre}
	if obj, found := pageDict.Find("Contents"); found && obj != nil {
		existing, err := d.contentArray(obj)
		if err != nil {
			return err
		}
		contents = append(contents, existing...)
	}
	contents = append(contents, *post)
	pageDict["Contents"] = contents
	return nil
}

func (d *Document) contentArray(obj types.Object) (types.Array, error) {
	ir, ok := obj.(types.IndirectRef)
	if !ok {
		if arr, ok := obj.(types.Array); ok {
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected Contents type %T", obj)
	}
	v, err := d.ctx.Dereference(ir)
	if err != nil {
		return nil, err
	}
	if arr, ok := v.(types.Array); ok {
		return arr, nil
	}
	return types.Array{ir}, nil
}

// bindFont gives the page its own copy of its effective resources with the
// replacement font added. Shared and inherited dictionaries are left as is.
func (d *Document) bindFont(pageDict, resources types.Dict) error {
	if d.font == nil {
		ir, err := d.ctx.IndRefForNewObject(types.Dict{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name(document.FontHelvetica),
			"Encoding": types.Name("WinAnsiEncoding"),
		})
		if err != nil {
			return fmt.Errorf("add font: %w", err)
		}
		d.font = ir
	}

	res := types.Dict{}
	if resources != nil {
		res = resources.Clone().(types.Dict)
	}
	fonts := types.Dict{}
	if obj, found := res.Find("Font"); found && obj != nil {
		existing, err := d.ctx.DereferenceDict(obj)
		if err != nil {
			return fmt.Errorf("dereference Font: %w", err)
		}
		if existing != nil {
			fonts = existing.Clone().(types.Dict)
		}
	}
	fonts[fontResource] = *d.font
	res["Font"] = fonts
	pageDict["Resources"] = res
	return nil
}

func (d *Document) newStream(buf []byte) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(buf)
	if err != nil {
		return nil, err
	}
	if err := sd.Encode(); err != nil {
		return nil, err
	}
	return d.ctx.IndRefForNewObject(*sd)
}
