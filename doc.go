// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

/*
The wordbin package contains tools to cut the words out of page images
of historical manuscripts, using outlines drawn around each word, and
to binarise each word with an adaptive local threshold. It can be run
on a single computer, or distributed across short-lived virtual
servers in the same way as the rescribe book pipeline.

Introduction

A dataset is a directory laid out like the HistoGraph word spotting
datasets:
  dataset/data/pages/270.jpg
  dataset/gt/locations/01/270.svg

Each .svg file contains a closed <path> for every word on the page
image of the same name, with the word's id as the id of the path. Each
word is cropped to the smallest upright rectangle around the smallest
rotated rectangle containing its outline, scaled to a standard height
(120 pixels by default), and binarised with the Wolf-Jolion, Sauvola or
Niblack method.

The binarisation packages can be used on their own:
  integralimg  sliding window mean and standard deviation over
               summed area tables
  binarize     threshold surfaces and binarisation
  locations    parsing of word outline files
  geom         outline to rectangle geometry
  extract      cutting words from pages

Processing a dataset locally

The wordbin command processes a whole dataset, using several pages at
once:
  wordbin -v -m wolf -wx 20 -wy 20 -k 0.5 MyDataset out/

This writes a binarised png for each word, named by its id, and a
.stats file for each page, listing the proportion of each word which
is ink. A single image can be binarised with the binarize command:
  binarize -m sauvola -k 0.3 page.png page_bin.png

Using the pipeline

Datasets can be added to the pipeline with the "datasettopipeline"
tool. This uploads the page images and outline files to storage, and
adds each page to the page queue:
  datasettopipeline -v MyDataset

The wordpipeline command is run on each server, and watches the
queues for work. Servers can be started with "spotme", and the state
of the servers, queues and datasets listed with "lspipeline". The
buckets and queues used are created with "mkpipeline", and defined in
cloudsettings.go. Results are fetched with "getpipelinedataset", and
a dataset can be removed from storage with "rmdataset".

How the pipeline works

When a job is taken from a queue by a process, it is hidden from the
queue for 2 minutes so that no other process can take it. Once per
minute when processing a job the process sends a message updating the
queue, to tell it to keep the job hidden for two minutes. This is
called the "heartbeat", as if the process fails for any reason the
heartbeat will stop, and in 2 minutes the job will reappear on the
queue for another process to have a go at. Once a job is completed
successfully it is deleted from the queue.

Queues

queuePage

Each message is the name of a page, prefixed by the dataset name and a
slash. The outline file and page image are downloaded, each word is
extracted and binarised, and the word images and page .stats file are
uploaded to the words/ directory of the dataset. Once every page of the
dataset has a .stats file, the dataset name is added to queueAnalyse.

  example message: SaintGall/270

queueAnalyse

A message on the queueAnalyse queue contains only a dataset name. A
graph of the ink proportion of every word, and a PDF proof sheet of
every binarised word, are created and uploaded to the dataset.

  example message: SaintGall

Local operation

Passing '-c local' to the pipeline commands uses directories and files
in the temporary directory in place of storage buckets and queues:

  datasettopipeline -c local MyDataset
  wordpipeline -v -c local
*/
package wordbin
